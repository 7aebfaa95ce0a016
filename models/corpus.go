package models

import "time"

type HealthResponse struct {
	Status           string    `json:"status"`
	Timestamp        time.Time `json:"timestamp"`
	Version          string    `json:"version"`
	DatabaseStatus   string    `json:"database_status"`
	EmbeddingsStatus string    `json:"embeddings_status"`
}

type CompanyInfo struct {
	Symbol           string     `json:"symbol"`
	Name             string     `json:"name"`
	TranscriptCount  int        `json:"transcript_count"`
	DateRange        *DateRange `json:"date_range"`
	LatestTranscript string     `json:"latest_transcript,omitempty"`
}

type CompaniesResponse struct {
	Companies        []CompanyInfo `json:"companies"`
	TotalCompanies   int           `json:"total_companies"`
	TotalTranscripts int           `json:"total_transcripts"`
}

// CompanyStats extends CompanyInfo with chunk-level detail for the
// per-company transcript endpoint.
type CompanyStats struct {
	Company          string     `json:"company"`
	Name             string     `json:"name"`
	TranscriptCount  int        `json:"transcript_count"`
	ChunkCount       uint64     `json:"chunk_count"`
	DateRange        *DateRange `json:"date_range"`
	LatestTranscript string     `json:"latest_transcript,omitempty"`
}

type CollectionHealth struct {
	Company        string    `json:"company"`
	CollectionName string    `json:"collection_name"`
	Status         string    `json:"status"`
	DocumentCount  uint64    `json:"document_count"`
	Error          string    `json:"error,omitempty"`
	LastChecked    time.Time `json:"last_checked"`
}

type CompanyTranscriptsResponse struct {
	Company        string           `json:"company"`
	Name           string           `json:"name"`
	Statistics     CompanyStats     `json:"statistics"`
	Health         CollectionHealth `json:"health"`
	CollectionName string           `json:"collection_name"`
	Transcripts    []TranscriptInfo `json:"transcripts,omitempty"`
}

// TranscriptInfo describes one indexed transcript document.
type TranscriptInfo struct {
	DocumentID string `json:"document_id"`
	Filename   string `json:"filename,omitempty"`
	Date       string `json:"date"`
	Quarter    string `json:"quarter,omitempty"`
	ChunkCount int    `json:"chunk_count"`
}
