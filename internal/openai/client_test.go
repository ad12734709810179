package openai

import (
	"context"
	"errors"
	"net/http"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

// MockOpenAIAPI is a mock for the OpenAI API
type MockOpenAIAPI struct {
	mock.Mock
}

func (m *MockOpenAIAPI) CreateEmbeddings(ctx context.Context, texts []string, intent Intent) ([][]float32, error) {
	args := m.Called(ctx, texts, intent)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([][]float32), args.Error(1)
}

func makeEmbedding(dims int) []float32 {
	embedding := make([]float32, dims)
	for i := range embedding {
		embedding[i] = float32(i) * 0.001
	}
	return embedding
}

func TestClient_GenerateEmbedding_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	ctx := context.Background()
	text := "BR18 chapter 5 requires a documented fire strategy for all buildings."
	expectedEmbedding := makeEmbedding(1536)

	mockAPI.On("CreateEmbeddings", ctx, []string{text}, IntentStore).
		Return([][]float32{expectedEmbedding}, nil)

	embedding, err := client.GenerateEmbedding(ctx, text, IntentStore)

	assert.NoError(t, err)
	assert.Len(t, embedding, 1536)
	assert.Equal(t, expectedEmbedding, embedding)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_EmptyText(t *testing.T) {
	client := NewClient("")

	ctx := context.Background()
	embedding, err := client.GenerateEmbedding(ctx, "", IntentQuery)

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Equal(t, ErrEmptyText, err)
}

func TestClient_GenerateEmbedding_APIError(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	ctx := context.Background()
	text := "Test text"
	apiErr := errors.New("API rate limit exceeded")

	mockAPI.On("CreateEmbeddings", ctx, []string{text}, IntentQuery).Return(nil, apiErr)

	embedding, err := client.GenerateEmbedding(ctx, text, IntentQuery)

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.Contains(t, err.Error(), "failed to create embedding")
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbedding_WrongDimensions(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	ctx := context.Background()
	text := "Test text"
	wrongEmbedding := makeEmbedding(512)

	mockAPI.On("CreateEmbeddings", ctx, []string{text}, IntentStore).
		Return([][]float32{wrongEmbedding}, nil)

	embedding, err := client.GenerateEmbedding(ctx, text, IntentStore)

	assert.Error(t, err)
	assert.Nil(t, embedding)
	assert.ErrorIs(t, err, ErrWrongDimensions)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbeddingBatch_Success(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	ctx := context.Background()
	texts := []string{"first chunk", "second chunk", "third chunk"}
	expected := [][]float32{makeEmbedding(1536), makeEmbedding(1536), makeEmbedding(1536)}

	mockAPI.On("CreateEmbeddings", ctx, texts, IntentStore).Return(expected, nil)

	embeddings, err := client.GenerateEmbeddingBatch(ctx, texts, IntentStore)

	assert.NoError(t, err)
	assert.Len(t, embeddings, 3)
	assert.Equal(t, expected, embeddings)
	mockAPI.AssertExpectations(t)
}

func TestClient_GenerateEmbeddingBatch_Empty(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	embeddings, err := client.GenerateEmbeddingBatch(context.Background(), nil, IntentStore)

	assert.NoError(t, err)
	assert.Nil(t, embeddings)
	mockAPI.AssertNotCalled(t, "CreateEmbeddings")
}

func TestClient_GenerateEmbeddingBatch_EmptyItem(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	embeddings, err := client.GenerateEmbeddingBatch(context.Background(), []string{"ok", ""}, IntentStore)

	assert.Error(t, err)
	assert.Nil(t, embeddings)
	assert.Equal(t, ErrEmptyText, err)
	mockAPI.AssertNotCalled(t, "CreateEmbeddings")
}

func TestClient_GenerateEmbeddingBatch_CountMismatch(t *testing.T) {
	mockAPI := new(MockOpenAIAPI)
	client := &Client{api: mockAPI, dimensions: 1536}

	ctx := context.Background()
	texts := []string{"first", "second"}

	mockAPI.On("CreateEmbeddings", ctx, texts, IntentStore).
		Return([][]float32{makeEmbedding(1536)}, nil)

	embeddings, err := client.GenerateEmbeddingBatch(ctx, texts, IntentStore)

	assert.Error(t, err)
	assert.Nil(t, embeddings)
	assert.ErrorIs(t, err, ErrBatchSizeMismatch)
}

// MockCompletionAPI is a mock for the chat completion API
type MockCompletionAPI struct {
	mock.Mock
}

func (m *MockCompletionAPI) CreateCompletion(ctx context.Context, system, user string) (string, error) {
	args := m.Called(ctx, system, user)
	return args.String(0), args.Error(1)
}

func TestClient_GenerateAnalysis_Success(t *testing.T) {
	mockCompletions := new(MockCompletionAPI)
	client := &Client{completions: mockCompletions, dimensions: 1536}

	ctx := context.Background()
	mockCompletions.On("CreateCompletion", ctx, "You are a BR18 expert.", "Analyze this feedback.").
		Return(`[{"pattern_description": "p"}]`, nil)

	out, err := client.GenerateAnalysis(ctx, "You are a BR18 expert.", "Analyze this feedback.")

	assert.NoError(t, err)
	assert.Equal(t, `[{"pattern_description": "p"}]`, out)
	mockCompletions.AssertExpectations(t)
}

func TestClient_GenerateAnalysis_EmptyPrompt(t *testing.T) {
	mockCompletions := new(MockCompletionAPI)
	client := &Client{completions: mockCompletions, dimensions: 1536}

	out, err := client.GenerateAnalysis(context.Background(), "system", "")

	assert.Error(t, err)
	assert.Empty(t, out)
	assert.Equal(t, ErrEmptyText, err)
	mockCompletions.AssertNotCalled(t, "CreateCompletion")
}

func TestClient_GenerateAnalysis_APIError(t *testing.T) {
	mockCompletions := new(MockCompletionAPI)
	client := &Client{completions: mockCompletions, dimensions: 1536}

	ctx := context.Background()
	mockCompletions.On("CreateCompletion", ctx, "system", "user").
		Return("", errors.New("model overloaded"))

	out, err := client.GenerateAnalysis(ctx, "system", "user")

	assert.Error(t, err)
	assert.Empty(t, out)
	assert.Contains(t, err.Error(), "failed to create completion")
}

func TestNewClient(t *testing.T) {
	client := NewClient("test-api-key")

	assert.NotNil(t, client)
	assert.NotNil(t, client.api)
	assert.Equal(t, DefaultEmbeddingDimensions, client.Dimensions())
}

func TestNewClientWithConfig_CustomDimensions(t *testing.T) {
	client := NewClientWithConfig(Config{APIKey: "k", EmbeddingDimensions: 768})

	assert.Equal(t, 768, client.Dimensions())
}

func TestNewClientFromEnv_NoAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "")

	client, err := NewClientFromEnv()

	assert.Nil(t, client)
	assert.Error(t, err)
	assert.Equal(t, ErrNoAPIKey, err)
}

func TestNewClientFromEnv_WithAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "test-api-key")

	client, err := NewClientFromEnv()

	assert.NotNil(t, client)
	assert.NoError(t, err)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil", nil, false},
		{"empty text", ErrEmptyText, false},
		{"wrong dimensions", ErrWrongDimensions, false},
		{"rate limited", &openai.APIError{HTTPStatusCode: http.StatusTooManyRequests}, true},
		{"server error", &openai.APIError{HTTPStatusCode: http.StatusInternalServerError}, true},
		{"bad gateway", &openai.APIError{HTTPStatusCode: http.StatusBadGateway}, true},
		{"bad request", &openai.APIError{HTTPStatusCode: http.StatusBadRequest}, false},
		{"unauthorized", &openai.APIError{HTTPStatusCode: http.StatusUnauthorized}, false},
		{"deadline exceeded", context.DeadlineExceeded, true},
		{"generic error", errors.New("boom"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, IsTransient(tt.err))
		})
	}
}
