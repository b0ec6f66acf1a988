package models

import (
	"errors"
	"math"
	"testing"
)

func TestSearchConfig_Validate(t *testing.T) {
	forms := []FormPatterns{{SearchPatterns: []string{"ابو منصور"}}}
	tests := []struct {
		name    string
		cfg     *SearchConfig
		wantErr bool
	}{
		{"no forms", &SearchConfig{}, true},
		{"valid", &SearchConfig{Forms: forms, Size: 50}, false},
		{"sets default size", &SearchConfig{Forms: forms}, false},
		{"negative from", &SearchConfig{Forms: forms, From: -1}, true},
		{"past max results", &SearchConfig{Forms: forms, From: MaxResults - 10, Size: 50}, true},
		{"up to max results", &SearchConfig{Forms: forms, From: MaxResults - 50, Size: 50}, false},
		{"size past max results", &SearchConfig{Forms: forms, Size: MaxResults + 1}, true},
		{"from overflows", &SearchConfig{Forms: forms, From: math.MaxInt - 10, Size: 50}, true},
		{"size overflows", &SearchConfig{Forms: forms, From: 50, Size: math.MaxInt}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("Validate() error = %v, want ErrInvalidConfig", err)
			}
			if !tt.wantErr && tt.cfg.Size == 0 {
				t.Error("expected default size to be set")
			}
		})
	}
}
