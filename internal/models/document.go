// Package models defines the boundary objects passed between the composer,
// the search backends and the pager.
package models

// Page is one indexed page of the corpus.
type Page struct {
	ID      string `json:"page_id"`
	TextID  int    `json:"text_id"`
	URI     string `json:"uri"`
	Vol     string `json:"vol"`
	PageNum int    `json:"page_num"`
	Content string `json:"page_content"`
}
