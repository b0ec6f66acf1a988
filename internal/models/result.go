package models

// SearchResult is a single page hit.
type SearchResult struct {
	TextID  int    `json:"text_id"`
	PageID  string `json:"page_id"`
	Vol     string `json:"vol"`
	PageNum int    `json:"page_num"`
	URI     string `json:"uri"`
	// Highlights maps a field name to its marked-up fragments.
	Highlights map[string][]string `json:"highlights,omitempty"`
}

// SearchResponse is one window of results plus the backend's total.
type SearchResponse struct {
	Hits      []SearchResult `json:"hits"`
	Total     int            `json:"total"`
	QueryTime int64          `json:"query_time_ms"`
}
