package ai

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/sashabaranov/go-openai"
	"google.golang.org/api/option"

	"financial-transcripts-rag/internal/config"
)

// EmbeddingClient turns text into vectors using the configured provider.
// Default provider is Google Generative AI (text-embedding-004); the
// OpenAI provider covers text-embedding-3-small and friends.
type EmbeddingClient struct {
	provider     string
	googleModel  string
	openaiModel  string
	dimensions   int
	googleClient *genai.Client
	openaiClient *openai.Client
}

func NewEmbeddingClient(cfg *config.Config) (*EmbeddingClient, error) {
	ec := &EmbeddingClient{
		provider:    strings.ToLower(cfg.EmbeddingsProvider),
		googleModel: cfg.GoogleEmbeddingsModel,
		openaiModel: cfg.OpenAIEmbeddingsModel,
		dimensions:  cfg.EmbeddingDimensions,
	}

	switch ec.provider {
	case "google", "":
		ec.provider = "google"
		if cfg.GeminiAPIKey == "" {
			return nil, fmt.Errorf("missing GEMINI_API_KEY for embeddings")
		}
		client, err := genai.NewClient(context.Background(), option.WithAPIKey(cfg.GeminiAPIKey))
		if err != nil {
			return nil, err
		}
		ec.googleClient = client

	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, fmt.Errorf("missing OPENAI_API_KEY for embeddings")
		}
		ec.openaiClient = openai.NewClient(cfg.OpenAIAPIKey)

	default:
		return nil, fmt.Errorf("unknown embeddings provider: %s", cfg.EmbeddingsProvider)
	}

	return ec, nil
}

// Provider reports the active embeddings provider.
func (ec *EmbeddingClient) Provider() string {
	return ec.provider
}

// ModelName reports the embedding model in use.
func (ec *EmbeddingClient) ModelName() string {
	if ec.provider == "openai" {
		return ec.openaiModel
	}
	return ec.googleModel
}

// Dimensions reports the expected vector size.
func (ec *EmbeddingClient) Dimensions() int {
	return ec.dimensions
}

// EmbedText returns the embedding vector for a single text.
func (ec *EmbeddingClient) EmbedText(ctx context.Context, text string) ([]float32, error) {
	vectors, err := ec.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("no embedding returned")
	}
	return vectors[0], nil
}

// EmbedBatch returns one embedding per input text, in input order.
func (ec *EmbeddingClient) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	switch ec.provider {
	case "openai":
		resp, err := ec.openaiClient.CreateEmbeddings(ctx, openai.EmbeddingRequestStrings{
			Input: texts,
			Model: openai.EmbeddingModel(ec.openaiModel),
		})
		if err != nil {
			return nil, fmt.Errorf("openai embeddings failed: %w", err)
		}
		if len(resp.Data) != len(texts) {
			return nil, fmt.Errorf("openai returned %d embeddings for %d texts", len(resp.Data), len(texts))
		}
		vectors := make([][]float32, len(resp.Data))
		for i, item := range resp.Data {
			vectors[i] = item.Embedding
		}
		return vectors, nil

	default: // google
		model := ec.googleClient.EmbeddingModel(ec.googleModel)
		batch := model.NewBatch()
		for _, text := range texts {
			batch.AddContent(genai.Text(text))
		}
		resp, err := model.BatchEmbedContents(ctx, batch)
		if err != nil {
			return nil, fmt.Errorf("google embeddings failed: %w", err)
		}
		if len(resp.Embeddings) != len(texts) {
			return nil, fmt.Errorf("google returned %d embeddings for %d texts", len(resp.Embeddings), len(texts))
		}
		vectors := make([][]float32, len(resp.Embeddings))
		for i, embedding := range resp.Embeddings {
			if embedding == nil {
				return nil, fmt.Errorf("no embedding returned for text %d", i)
			}
			vectors[i] = embedding.Values
		}
		return vectors, nil
	}
}

// Close releases the underlying provider clients.
func (ec *EmbeddingClient) Close() error {
	if ec.googleClient != nil {
		return ec.googleClient.Close()
	}
	return nil
}
