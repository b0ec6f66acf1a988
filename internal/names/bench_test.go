package names

import "testing"

func BenchmarkGeneratePatterns(b *testing.B) {
	kunyas := []string{"أبو منصور", "أبو بكر"}
	nisbas := []string{"الأصبهاني", "الحنبلي"}
	flags := Flags{AllowRareKunyaNisba: true, AllowTwoNasab: true, AllowKunyaNasab: true, AllowOneNasabNisba: true}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = GeneratePatterns(kunyas, "مَعْمَر بن أحمد بن زياد", nisbas, flags)
	}
}
