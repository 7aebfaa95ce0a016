package ai

import (
	"context"
	"os"
	"testing"

	"financial-transcripts-rag/internal/config"
)

func TestTokenCounterLimits(t *testing.T) {
	tc := NewTokenCounter(RateLimits{RPM: 2, TPM: 100, RPD: 10})

	if !tc.CanConsume(50, 1) {
		t.Fatal("first request should be allowed")
	}
	tc.RecordUsage(50, 1)

	if !tc.CanConsume(50, 1) {
		t.Fatal("second request within limits should be allowed")
	}
	tc.RecordUsage(50, 1)

	if tc.CanConsume(1, 1) {
		t.Error("third request should exceed RPM limit")
	}
	if tc.CanConsume(100, 0) {
		t.Error("request should exceed TPM limit")
	}
}

func TestGetRateLimits(t *testing.T) {
	limits := getRateLimits(60)
	if limits.RPM != 60 {
		t.Errorf("RPM = %d, want 60", limits.RPM)
	}

	fallback := getRateLimits(0)
	if fallback.RPM != 10 {
		t.Errorf("fallback RPM = %d, want 10", fallback.RPM)
	}
}

func TestEstimateTokens(t *testing.T) {
	if got := estimateTokens("abcdefgh"); got != 2 {
		t.Errorf("estimateTokens = %d, want 2", got)
	}
}

func TestGenerateTextLive(t *testing.T) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Skipf("config load failed: %v", err)
	}

	client, err := NewGeminiClient(cfg)
	if err != nil {
		t.Fatalf("NewGeminiClient failed: %v", err)
	}
	defer client.Close()

	text, tokens, err := client.GenerateText(context.Background(), "Reply with 'OK' if you're working.", 0)
	if err != nil {
		t.Fatalf("GenerateText failed: %v", err)
	}
	if text == "" {
		t.Error("expected non-empty response")
	}
	if tokens <= 0 {
		t.Errorf("expected positive token count, got %d", tokens)
	}
}

func TestHealthCheckLive(t *testing.T) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Skipf("config load failed: %v", err)
	}

	client, err := NewGeminiClient(cfg)
	if err != nil {
		t.Fatalf("NewGeminiClient failed: %v", err)
	}
	defer client.Close()

	status := client.HealthCheck(context.Background())
	if status != "healthy" && status != "warning" {
		t.Errorf("unexpected status %q for a reachable API", status)
	}
}

func TestEmbedBatchLive(t *testing.T) {
	if os.Getenv("GEMINI_API_KEY") == "" {
		t.Skip("GEMINI_API_KEY not set")
	}

	cfg, err := config.LoadConfig()
	if err != nil {
		t.Skipf("config load failed: %v", err)
	}

	client, err := NewEmbeddingClient(cfg)
	if err != nil {
		t.Fatalf("NewEmbeddingClient failed: %v", err)
	}
	defer client.Close()

	vectors, err := client.EmbedBatch(context.Background(), []string{"revenue grew", "margins fell"})
	if err != nil {
		t.Fatalf("EmbedBatch failed: %v", err)
	}
	if len(vectors) != 2 {
		t.Fatalf("expected 2 vectors, got %d", len(vectors))
	}
	for i, vector := range vectors {
		if len(vector) == 0 {
			t.Errorf("vector %d is empty", i)
		}
	}
}
