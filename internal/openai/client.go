package openai

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"

	openai "github.com/sashabaranov/go-openai"
)

const (
	// DefaultEmbeddingModel is the OpenAI model used for generating embeddings
	DefaultEmbeddingModel = openai.AdaEmbeddingV2
	// DefaultEmbeddingDimensions is the expected dimension of embeddings from ada-002
	DefaultEmbeddingDimensions = 1536
	// DefaultAnalysisModel is the chat model used for feedback analysis
	DefaultAnalysisModel = openai.GPT4oMini
	// analysisTemperature keeps pattern extraction near-deterministic
	analysisTemperature = 0.2
)

// Intent distinguishes embeddings produced for storage from embeddings
// produced for querying. Some models encode the two differently; the gateway
// carries the intent on every call so swapping models stays a local change.
type Intent string

const (
	IntentStore Intent = "store"
	IntentQuery Intent = "query"
)

var (
	// ErrEmptyText is returned when text is empty
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrWrongDimensions is returned when an embedding has unexpected dimensions
	ErrWrongDimensions = errors.New("embedding has wrong dimensions")
	// ErrNoAPIKey is returned when OpenAI API key is not set
	ErrNoAPIKey = errors.New("OPENAI_API_KEY environment variable not set")
	// ErrBatchSizeMismatch is returned when the API returns a different number
	// of embeddings than texts submitted
	ErrBatchSizeMismatch = errors.New("embedding count does not match input count")
	// ErrEmptyCompletion is returned when the chat API answers with no choices
	ErrEmptyCompletion = errors.New("completion returned no choices")
)

// EmbeddingAPI defines the interface for embedding generation
type EmbeddingAPI interface {
	CreateEmbeddings(ctx context.Context, texts []string, intent Intent) ([][]float32, error)
}

// CompletionAPI defines the interface for chat-based analysis
type CompletionAPI interface {
	CreateCompletion(ctx context.Context, system, user string) (string, error)
}

// Client wraps the OpenAI API client with dimension validation.
type Client struct {
	api         EmbeddingAPI
	completions CompletionAPI
	dimensions  int
}

type OpenAIAdapter struct {
	client        *openai.Client
	model         openai.EmbeddingModel
	analysisModel string
}

func NewOpenAIAdapter(apiKey string, model openai.EmbeddingModel) *OpenAIAdapter {
	if model == "" {
		model = DefaultEmbeddingModel
	}
	return &OpenAIAdapter{
		client:        openai.NewClient(apiKey),
		model:         model,
		analysisModel: DefaultAnalysisModel,
	}
}

// CreateEmbeddings calls the OpenAI API to create embeddings. The ada family
// does not distinguish store and query encodings, so intent is accepted for
// the interface contract and ignored here.
func (a *OpenAIAdapter) CreateEmbeddings(ctx context.Context, texts []string, intent Intent) ([][]float32, error) {
	resp, err := a.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: a.model,
	})
	if err != nil {
		return nil, err
	}

	if len(resp.Data) != len(texts) {
		return nil, ErrBatchSizeMismatch
	}

	embeddings := make([][]float32, len(resp.Data))
	for i, item := range resp.Data {
		embeddings[i] = item.Embedding
	}
	return embeddings, nil
}

// CreateCompletion runs one chat turn and returns the assistant's text.
func (a *OpenAIAdapter) CreateCompletion(ctx context.Context, system, user string) (string, error) {
	resp, err := a.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: a.analysisModel,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: system},
			{Role: openai.ChatMessageRoleUser, Content: user},
		},
		Temperature: analysisTemperature,
	})
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", ErrEmptyCompletion
	}
	return resp.Choices[0].Message.Content, nil
}

type Config struct {
	APIKey              string
	EmbeddingModel      openai.EmbeddingModel
	EmbeddingDimensions int
	AnalysisModel       string
}

// NewClient creates a new OpenAI client using defaults.
func NewClient(apiKey string) *Client {
	return NewClientWithConfig(Config{APIKey: apiKey})
}

// NewClientWithConfig creates a new OpenAI client with explicit configuration.
func NewClientWithConfig(cfg Config) *Client {
	dimensions := cfg.EmbeddingDimensions
	if dimensions <= 0 {
		dimensions = DefaultEmbeddingDimensions
	}
	adapter := NewOpenAIAdapter(cfg.APIKey, cfg.EmbeddingModel)
	if cfg.AnalysisModel != "" {
		adapter.analysisModel = cfg.AnalysisModel
	}
	return &Client{
		api:         adapter,
		completions: adapter,
		dimensions:  dimensions,
	}
}

// NewClientFromEnv creates a new OpenAI client using OPENAI_API_KEY environment variable
func NewClientFromEnv() (*Client, error) {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}
	return NewClient(apiKey), nil
}

// Dimensions returns the embedding dimensionality the client enforces.
func (c *Client) Dimensions() int {
	return c.dimensions
}

// GenerateEmbedding generates an embedding for the given text
func (c *Client) GenerateEmbedding(ctx context.Context, text string, intent Intent) ([]float32, error) {
	if text == "" {
		return nil, ErrEmptyText
	}

	embeddings, err := c.api.CreateEmbeddings(ctx, []string{text}, intent)
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(embeddings) != 1 {
		return nil, ErrBatchSizeMismatch
	}

	if len(embeddings[0]) != c.dimensions {
		return nil, fmt.Errorf("%w: expected %d, got %d", ErrWrongDimensions, c.dimensions, len(embeddings[0]))
	}

	return embeddings[0], nil
}

// GenerateEmbeddingBatch generates embeddings for multiple texts in one API
// call, preserving input order.
func (c *Client) GenerateEmbeddingBatch(ctx context.Context, texts []string, intent Intent) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for _, text := range texts {
		if text == "" {
			return nil, ErrEmptyText
		}
	}

	embeddings, err := c.api.CreateEmbeddings(ctx, texts, intent)
	if err != nil {
		return nil, fmt.Errorf("failed to create embeddings: %w", err)
	}
	if len(embeddings) != len(texts) {
		return nil, ErrBatchSizeMismatch
	}

	for i, embedding := range embeddings {
		if len(embedding) != c.dimensions {
			return nil, fmt.Errorf("%w: item %d expected %d, got %d", ErrWrongDimensions, i, c.dimensions, len(embedding))
		}
	}

	return embeddings, nil
}

// GenerateAnalysis runs a system-plus-user chat prompt and returns the raw
// model output. Callers own parsing; the gateway only validates inputs.
func (c *Client) GenerateAnalysis(ctx context.Context, system, user string) (string, error) {
	if user == "" {
		return "", ErrEmptyText
	}

	out, err := c.completions.CreateCompletion(ctx, system, user)
	if err != nil {
		return "", fmt.Errorf("failed to create completion: %w", err)
	}
	return out, nil
}

// IsTransient reports whether an embedding error is worth retrying. Rate
// limits, server errors and network timeouts are transient; validation and
// auth failures are not. The client itself never retries.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrEmptyText) ||
		errors.Is(err, ErrWrongDimensions) ||
		errors.Is(err, ErrBatchSizeMismatch) ||
		errors.Is(err, ErrEmptyCompletion) ||
		errors.Is(err, ErrNoAPIKey) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.HTTPStatusCode {
		case http.StatusTooManyRequests,
			http.StatusInternalServerError,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return errors.Is(err, context.DeadlineExceeded)
}
