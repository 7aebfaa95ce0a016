package models

const (
	EmbeddingStatusIdle       = "idle"
	EmbeddingStatusStarting   = "starting"
	EmbeddingStatusProcessing = "processing"
	EmbeddingStatusCompleted  = "completed"
	EmbeddingStatusError      = "error"
)

// EmbeddingStatus reports ingestion progress. Progress is a percentage
// in [0, 100] rounded to one decimal place.
type EmbeddingStatus struct {
	Status                 string  `json:"status"`
	Progress               float64 `json:"progress"`
	TotalDocuments         int     `json:"total_documents"`
	ProcessedDocuments     int     `json:"processed_documents"`
	CurrentCompany         string  `json:"current_company,omitempty"`
	EstimatedTimeRemaining string  `json:"estimated_time_remaining,omitempty"`
	Error                  string  `json:"error,omitempty"`
}

type CreateEmbeddingsRequest struct {
	ForceRecreate bool     `json:"force_recreate,omitempty"`
	Companies     []string `json:"companies,omitempty"`
	BatchSize     int      `json:"batch_size,omitempty" binding:"omitempty,min=1,max=100"`
}

// Companies echoes the requested list, or the string "all" when the
// request did not name any.
type CreateEmbeddingsResponse struct {
	Message       string      `json:"message"`
	Status        string      `json:"status"`
	ForceRecreate bool        `json:"force_recreate"`
	Companies     interface{} `json:"companies"`
	BatchSize     int         `json:"batch_size"`
}

type EmbeddingCacheInfo struct {
	CachedEmbeddings int     `json:"cached_embeddings"`
	CacheSizeMB      float64 `json:"cache_size_mb"`
	CacheDirectory   string  `json:"cache_directory"`
	ModelName        string  `json:"model_name"`
}
