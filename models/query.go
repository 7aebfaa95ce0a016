package models

// DateRange filters results to transcripts between Start and End,
// both in YYYY-MM-DD format. Either bound may be empty.
type DateRange struct {
	Start string `json:"start,omitempty"`
	End   string `json:"end,omitempty"`
}

type QueryRequest struct {
	Question            string     `json:"question" binding:"required,min=1,max=1000"`
	CompanyFilter       []string   `json:"company_filter,omitempty"`
	DateRange           *DateRange `json:"date_range,omitempty"`
	MaxResults          int        `json:"max_results,omitempty" binding:"omitempty,min=1,max=20"`
	SimilarityThreshold *float64   `json:"similarity_threshold,omitempty" binding:"omitempty,min=0,max=1"`
	Temperature         *float32   `json:"temperature,omitempty" binding:"omitempty,min=0,max=2"`
}

// SourceDocument is one transcript excerpt backing an answer.
type SourceDocument struct {
	Company         string  `json:"company"`
	Date            string  `json:"date"`
	Quarter         string  `json:"quarter,omitempty"`
	Chunk           string  `json:"chunk"`
	SimilarityScore float64 `json:"similarity_score"`
	DocumentID      string  `json:"document_id"`
	ChunkIndex      int     `json:"chunk_index"`
}

type QueryMetadata struct {
	ProcessingTime      string  `json:"processing_time"`
	TotalChunksSearched uint64  `json:"total_chunks_searched"`
	ModelUsed           string  `json:"model_used"`
	LLMModel            string  `json:"llm_model"`
	SimilarityThreshold float64 `json:"similarity_threshold"`
	MaxResults          int     `json:"max_results"`
	Cached              bool    `json:"cached,omitempty"`
}

type QueryResponse struct {
	Query    string           `json:"query"`
	Answer   string           `json:"answer"`
	Sources  []SourceDocument `json:"sources"`
	Metadata QueryMetadata    `json:"metadata"`
}

type SearchRequest struct {
	Query               string   `json:"query" binding:"required,min=1,max=1000"`
	CompanyFilter       []string `json:"company_filter,omitempty"`
	MaxResults          int      `json:"max_results,omitempty" binding:"omitempty,min=1,max=50"`
	SimilarityThreshold *float64 `json:"similarity_threshold,omitempty" binding:"omitempty,min=0,max=1"`
}

type SearchResultMeta struct {
	Quarter    string `json:"quarter,omitempty"`
	ChunkIndex int    `json:"chunk_index"`
	Filename   string `json:"filename,omitempty"`
}

type SearchResult struct {
	DocumentID      string            `json:"document_id"`
	Company         string            `json:"company"`
	Date            string            `json:"date"`
	Content         string            `json:"content"`
	SimilarityScore float64           `json:"similarity_score"`
	Metadata        *SearchResultMeta `json:"metadata,omitempty"`
}

type SearchResponse struct {
	Query          string         `json:"query"`
	Results        []SearchResult `json:"results"`
	TotalResults   int            `json:"total_results"`
	ProcessingTime string         `json:"processing_time"`
}
