package provider

import "time"

// ContentItem is one fetched document (headline or post) before scoring.
type ContentItem struct {
	Source       string
	SourceItemID string
	Title        string
	URL          string
	Excerpt      string
	Author       string
	PublishedAt  time.Time
	Engagement   float64
	Metadata     map[string]any
}
