package config

import "testing"

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Port != "8000" {
		t.Errorf("expected default port 8000, got %s", cfg.Port)
	}
	if cfg.ProjectName != "Financial Transcripts RAG API" {
		t.Errorf("unexpected project name: %s", cfg.ProjectName)
	}
	if cfg.APIPrefix != "/api/v1" {
		t.Errorf("unexpected API prefix: %s", cfg.APIPrefix)
	}
	if cfg.MaxChunksPerQuery != 5 {
		t.Errorf("expected MaxChunksPerQuery 5, got %d", cfg.MaxChunksPerQuery)
	}
	if cfg.SimilarityThreshold != 0.7 {
		t.Errorf("expected SimilarityThreshold 0.7, got %f", cfg.SimilarityThreshold)
	}
	if cfg.BatchSize != 32 {
		t.Errorf("expected BatchSize 32, got %d", cfg.BatchSize)
	}
	if cfg.MaxChunkSize != 512 {
		t.Errorf("expected MaxChunkSize 512, got %d", cfg.MaxChunkSize)
	}
	if cfg.GeminiModel != "gemini-2.0-flash" {
		t.Errorf("unexpected Gemini model: %s", cfg.GeminiModel)
	}
	if cfg.EmbeddingsProvider != "google" {
		t.Errorf("expected default embeddings provider google, got %s", cfg.EmbeddingsProvider)
	}
	if cfg.QdrantPort != 6334 {
		t.Errorf("expected default Qdrant port 6334, got %d", cfg.QdrantPort)
	}
}

func TestLoadConfigRequiresGeminiKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when GEMINI_API_KEY is missing")
	}
}

func TestLoadConfigOpenAIProviderRequiresKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("EMBEDDINGS_PROVIDER", "openai")
	t.Setenv("OPENAI_API_KEY", "")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error when EMBEDDINGS_PROVIDER=openai without OPENAI_API_KEY")
	}
}

func TestLoadConfigRejectsBadThreshold(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("SIMILARITY_THRESHOLD", "1.5")

	if _, err := LoadConfig(); err == nil {
		t.Fatal("expected error for out-of-range SIMILARITY_THRESHOLD")
	}
}

func TestGetEnvIntFallsBackOnBadValue(t *testing.T) {
	t.Setenv("SOME_INT", "not-a-number")

	if got := getEnvInt("SOME_INT", 42); got != 42 {
		t.Errorf("expected fallback 42, got %d", got)
	}
}
