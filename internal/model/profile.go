package model

import (
	"time"
)

// reviewTextLimit bounds stored review text; longer bodies are cut and
// marked with truncationMark.
const (
	reviewTextLimit = 280
	truncationMark  = "…"
)

// Profile is the root output entity of one discovery build. It is assembled
// once and never mutated; its JSON form is the durable output contract, so
// field names and order are stable and unavailable blocks render as explicit
// null/empty values rather than omitted keys.
type Profile struct {
	Query          string                     `json:"query"`
	ResolvedName   *string                    `json:"resolved_name"`
	Directory      *DirectoryRecord           `json:"directory"`
	Regulatory     *RegulatoryRecord          `json:"regulatory"`
	Reviews        *ReviewSnapshot            `json:"reviews"`
	News           []NewsItem                 `json:"news"`
	Placeholders   map[string]PlaceholderNote `json:"placeholders"`
	Risks          []string                   `json:"risks"`
	Opportunities  []string                   `json:"opportunities"`
	DerivedMetrics map[string]map[string]any  `json:"derived_metrics"`
	GeneratedAt    time.Time                  `json:"generated_at"`
}

// DirectoryRecord is the normalized output of the place-directory source.
type DirectoryRecord struct {
	Name        string       `json:"name"`
	Address     string       `json:"address"`
	Phone       string       `json:"phone"`
	Website     string       `json:"website"`
	MapsURL     string       `json:"maps_url"`
	Rating      *float64     `json:"rating"`
	RatingCount int          `json:"rating_count"`
	Reviews     []ReviewItem `json:"reviews"`
}

// RegulatoryRecord is the best-matching row of the regulatory quality
// dataset, passed through unmodified (dataset-native string values).
type RegulatoryRecord struct {
	ProviderID        string `json:"provider_id"`
	Name              string `json:"hospital_name"`
	Type              string `json:"hospital_type"`
	Ownership         string `json:"hospital_ownership"`
	Address           string `json:"address"`
	City              string `json:"city"`
	State             string `json:"state"`
	Zip               string `json:"zip_code"`
	Phone             string `json:"phone_number"`
	OverallRating     string `json:"hospital_overall_rating"`
	EmergencyServices string `json:"emergency_services"`
}

// ReviewSnapshot aggregates the directory source's review page.
type ReviewSnapshot struct {
	Rating      *float64     `json:"rating"`
	RatingCount int          `json:"rating_count"`
	Items       []ReviewItem `json:"items"`
	Themes      []string     `json:"themes"`
}

// ReviewItem is one review as received; source order is preserved.
type ReviewItem struct {
	Author string   `json:"author"`
	Rating *float64 `json:"rating"`
	When   string   `json:"when"`
	Text   string   `json:"text"`
}

// NewReviewItem builds a ReviewItem, truncating over-long text with an
// explicit marker.
func NewReviewItem(author string, rating *float64, when, text string) ReviewItem {
	return ReviewItem{
		Author: author,
		Rating: rating,
		When:   when,
		Text:   TruncateText(text, reviewTextLimit),
	}
}

// TruncateText cuts s to at most limit runes, appending the truncation
// marker when anything was removed.
func TruncateText(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + truncationMark
}

// NewsItem is one entry from the news search feed.
type NewsItem struct {
	Title       string    `json:"title"`
	URL         string    `json:"url"`
	Description string    `json:"description"`
	Source      string    `json:"source"`
	PublishedAt time.Time `json:"published_at"`
}

// PlaceholderNote is the fixed informational payload of a manual-entry
// source stub.
type PlaceholderNote struct {
	Source string `json:"source"`
	Note   string `json:"note"`
	Access string `json:"access"`
}
