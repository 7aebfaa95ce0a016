package models

type InsightsRequest struct {
	Topic      string     `json:"topic" binding:"required,min=1,max=500"`
	Companies  []string   `json:"companies,omitempty"`
	DateRange  *DateRange `json:"date_range,omitempty"`
	MaxSources int        `json:"max_sources,omitempty" binding:"omitempty,min=1,max=20"`
}

type SentimentInfo struct {
	Sentiment  string  `json:"sentiment"`
	Confidence float64 `json:"confidence"`
	Reasoning  string  `json:"reasoning,omitempty"`
}

type InsightsResponse struct {
	Topic            string        `json:"topic"`
	Summary          string        `json:"summary"`
	KeyPoints        []string      `json:"key_points"`
	Sentiment        SentimentInfo `json:"sentiment"`
	SourcesCount     int           `json:"sources_count"`
	CompaniesCovered []string      `json:"companies_covered,omitempty"`
	DateRangeCovered *DateRange    `json:"date_range_covered,omitempty"`
}
