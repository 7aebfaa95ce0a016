package telemetry

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics holds all application metrics
type Metrics struct {
	RequestCounter      metric.Int64Counter
	RequestDuration     metric.Float64Histogram
	TokensUsed          metric.Int64Counter
	QueryDuration       metric.Float64Histogram
	ChunksRetrieved     metric.Int64Counter
	EmbeddingsGenerated metric.Int64Counter
	CacheEvents         metric.Int64Counter
	CircuitBreakerState metric.Int64Counter
}

// InitMetrics initializes all application metrics
func InitMetrics() (*Metrics, error) {
	meter := otel.Meter("financial-transcripts-rag")

	requestCounter, err := meter.Int64Counter(
		"http.requests.total",
		metric.WithDescription("Total HTTP requests"),
	)
	if err != nil {
		return nil, err
	}

	requestDuration, err := meter.Float64Histogram(
		"http.request.duration",
		metric.WithDescription("HTTP request duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	tokensUsed, err := meter.Int64Counter(
		"gemini.tokens.used",
		metric.WithDescription("Total Gemini tokens used"),
	)
	if err != nil {
		return nil, err
	}

	queryDuration, err := meter.Float64Histogram(
		"rag.query.duration",
		metric.WithDescription("End-to-end RAG query duration in seconds"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	chunksRetrieved, err := meter.Int64Counter(
		"rag.chunks.retrieved",
		metric.WithDescription("Transcript chunks returned by vector search"),
	)
	if err != nil {
		return nil, err
	}

	embeddingsGenerated, err := meter.Int64Counter(
		"embeddings.generated.total",
		metric.WithDescription("Embeddings generated, by provider"),
	)
	if err != nil {
		return nil, err
	}

	cacheEvents, err := meter.Int64Counter(
		"cache.events.total",
		metric.WithDescription("Cache hits and misses, by cache name"),
	)
	if err != nil {
		return nil, err
	}

	circuitBreakerState, err := meter.Int64Counter(
		"circuit_breaker.state_changes",
		metric.WithDescription("Circuit breaker state changes"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		RequestCounter:      requestCounter,
		RequestDuration:     requestDuration,
		TokensUsed:          tokensUsed,
		QueryDuration:       queryDuration,
		ChunksRetrieved:     chunksRetrieved,
		EmbeddingsGenerated: embeddingsGenerated,
		CacheEvents:         cacheEvents,
		CircuitBreakerState: circuitBreakerState,
	}, nil
}

// RecordRequest records HTTP request metrics
func (m *Metrics) RecordRequest(method, path, status string, duration float64) {
	attrs := []attribute.KeyValue{
		attribute.String("http.method", method),
		attribute.String("http.path", path),
		attribute.String("http.status", status),
	}

	m.RequestCounter.Add(context.Background(), 1, metric.WithAttributes(attrs...))
	m.RequestDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
}

// RecordTokensUsed records Gemini token usage
func (m *Metrics) RecordTokensUsed(tokens int64, model string) {
	attrs := []attribute.KeyValue{
		attribute.String("gemini.model", model),
		attribute.String("service", "gemini"),
	}

	m.TokensUsed.Add(context.Background(), tokens, metric.WithAttributes(attrs...))
}

// RecordQuery records an end-to-end RAG query
func (m *Metrics) RecordQuery(duration float64, chunks int, status string) {
	attrs := []attribute.KeyValue{
		attribute.String("query.status", status),
	}

	m.QueryDuration.Record(context.Background(), duration, metric.WithAttributes(attrs...))
	m.ChunksRetrieved.Add(context.Background(), int64(chunks), metric.WithAttributes(attrs...))
}

// RecordEmbeddings records generated embeddings by provider
func (m *Metrics) RecordEmbeddings(count int, provider string) {
	attrs := []attribute.KeyValue{
		attribute.String("embeddings.provider", provider),
	}

	m.EmbeddingsGenerated.Add(context.Background(), int64(count), metric.WithAttributes(attrs...))
}

// RecordCacheEvent records a hit or miss for a named cache
func (m *Metrics) RecordCacheEvent(cache string, hit bool) {
	outcome := "miss"
	if hit {
		outcome = "hit"
	}
	attrs := []attribute.KeyValue{
		attribute.String("cache.name", cache),
		attribute.String("cache.outcome", outcome),
	}

	m.CacheEvents.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// RecordCircuitBreakerState records circuit breaker state changes
func (m *Metrics) RecordCircuitBreakerState(service, state string) {
	attrs := []attribute.KeyValue{
		attribute.String("service", service),
		attribute.String("state", state),
	}

	m.CircuitBreakerState.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}
