//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"math"
	"net"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/norddok/norddok/internal/api/handlers"
	"github.com/norddok/norddok/internal/openai"
	"github.com/norddok/norddok/internal/repository"
	"github.com/norddok/norddok/internal/scoring"
	"github.com/norddok/norddok/internal/server"
	"github.com/norddok/norddok/internal/service"
	"github.com/norddok/norddok/internal/storage"
	"github.com/norddok/norddok/internal/testutil"
)

const (
	testAuthToken  = "e2e-test-token"
	testDimensions = 1536
)

// E2ETestEnv holds all resources needed for E2E tests
type E2ETestEnv struct {
	T            *testing.T
	Ctx          context.Context
	PostgresC    *testutil.PostgresContainer
	RustFSC      *testutil.RustFSContainer
	Pool         *pgxpool.Pool
	ServerURL    string
	ServerCloser func()
	Archive      *storage.OutcomeArchive
	BinaryDir    string
	HTTPClient   *http.Client
}

// SetupE2EEnv creates a full E2E test environment with containers and server
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)

	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	archive, err := storage.NewOutcomeArchive(ctx, storage.OutcomeArchiveConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "eu-north-1",
		AccessKeyID:     s3C.AccessKey,
		SecretAccessKey: s3C.SecretKey,
		Bucket:          "norddok-outcomes-e2e",
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("failed to create outcome archive: %v", err)
	}
	if err := archive.EnsureBucket(ctx); err != nil {
		t.Fatalf("failed to create bucket: %v", err)
	}

	port, err := getFreePort()
	if err != nil {
		t.Fatalf("failed to get free port: %v", err)
	}

	serverURL, serverCloser := startServer(t, pool, archive, port)

	return &E2ETestEnv{
		T:            t,
		Ctx:          ctx,
		PostgresC:    pgC,
		RustFSC:      s3C,
		Pool:         pool,
		ServerURL:    serverURL,
		ServerCloser: serverCloser,
		Archive:      archive,
		HTTPClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// Cleanup releases all resources
func (e *E2ETestEnv) Cleanup() {
	if e.ServerCloser != nil {
		e.ServerCloser()
	}
	if e.Pool != nil {
		e.Pool.Close()
	}
	if e.RustFSC != nil {
		e.RustFSC.Terminate(e.Ctx)
	}
	if e.PostgresC != nil {
		e.PostgresC.Terminate(e.Ctx)
	}
	if e.BinaryDir != "" {
		os.RemoveAll(e.BinaryDir)
	}
}

// Reset truncates the store between tests sharing one environment.
func (e *E2ETestEnv) Reset() {
	if err := testutil.TruncateAll(e.Ctx, e.Pool); err != nil {
		e.T.Fatalf("failed to reset database: %v", err)
	}
}

// BuildBinaries builds the norddok CLI binary
func (e *E2ETestEnv) BuildBinaries() {
	tmpDir, err := os.MkdirTemp("", "norddok-e2e-*")
	if err != nil {
		e.T.Fatalf("failed to create temp dir: %v", err)
	}
	e.BinaryDir = tmpDir

	cmd := exec.Command("go", "build", "-o", filepath.Join(tmpDir, "norddok"), "./cmd/norddok")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("failed to build norddok: %v\n%s", err, out)
	}
}

// RunNorddok runs the norddok CLI command against the test server
func (e *E2ETestEnv) RunNorddok(args ...string) (string, error) {
	cmd := exec.Command(filepath.Join(e.BinaryDir, "norddok"), args...)
	cmd.Env = append(os.Environ(),
		fmt.Sprintf("NORDDOK_API_TOKEN=%s", testAuthToken),
		fmt.Sprintf("NORDDOK_API_URL=%s", e.ServerURL),
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse represents a standard API response
type APIResponse struct {
	Data  json.RawMessage `json:"data"`
	Error string          `json:"error,omitempty"`
}

// Get performs a GET request
func (e *E2ETestEnv) Get(path, authToken string) (*APIResponse, error) {
	return e.doRequest("GET", path, nil, authToken)
}

// Post performs a POST request
func (e *E2ETestEnv) Post(path string, body interface{}, authToken string) (*APIResponse, error) {
	return e.doRequest("POST", path, body, authToken)
}

// Delete performs a DELETE request
func (e *E2ETestEnv) Delete(path, authToken string) (*APIResponse, error) {
	return e.doRequest("DELETE", path, nil, authToken)
}

func (e *E2ETestEnv) doRequest(method, path string, body interface{}, authToken string) (*APIResponse, error) {
	url := e.ServerURL + path

	var reqBody io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal body: %w", err)
		}
		reqBody = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequest(method, url, reqBody)
	if err != nil {
		return nil, err
	}

	if authToken != "" {
		req.Header.Set("Authorization", "Bearer "+authToken)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNoContent {
		return &APIResponse{}, nil
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var apiResp APIResponse
	if err := json.Unmarshal(respBody, &apiResp); err != nil {
		if resp.StatusCode >= 400 {
			return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, string(respBody))
		}
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("HTTP %d: %s", resp.StatusCode, apiResp.Error)
	}

	return &apiResp, nil
}

// startServer starts the HTTP server with the full service stack wired to a
// deterministic embedding stub, so tests run without OpenAI access.
func startServer(t *testing.T, pool *pgxpool.Pool, archive *storage.OutcomeArchive, port int) (string, func()) {
	chunkRepo := repository.NewChunkRepository(pool, testDimensions)
	embeddings := &stubEmbeddingClient{}
	scorer := scoring.NewScorer()

	chunkSvc := service.NewChunkStoreService(chunkRepo, embeddings, scoring.InitialConfidence, testDimensions)
	retrievalSvc := service.NewRetrievalService(chunkRepo, embeddings)
	outcomeSvc := service.NewOutcomeService(chunkSvc, archive)
	corpusSvc := service.NewCorpusService(chunkSvc)
	rescoreSvc := service.NewRescoreService(chunkRepo, scorer)
	insightSvc := service.NewInsightService(chunkRepo, &stubAnalyzer{}, chunkSvc)

	cfg := server.RouterConfig{
		AuthToken:           testAuthToken,
		ChunkHandler:        handlers.NewChunkHandler(chunkSvc),
		SearchHandler:       handlers.NewSearchHandler(retrievalSvc),
		OutcomeHandler:      handlers.NewOutcomeHandler(outcomeSvc),
		CorpusHandler:       handlers.NewCorpusHandler(corpusSvc),
		ConfirmationHandler: handlers.NewConfirmationHandler(rescoreSvc),
		InsightHandler:      handlers.NewInsightHandler(insightSvc),
	}

	router := server.NewRouter(cfg)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			t.Logf("server error: %v", err)
		}
	}()

	serverURL := fmt.Sprintf("http://localhost:%d", port)
	waitForServer(t, serverURL, 10*time.Second)

	return serverURL, func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(ctx)
	}
}

func waitForServer(t *testing.T, url string, timeout time.Duration) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		resp, err := http.Get(url + "/health")
		if err == nil {
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return
			}
		}
		time.Sleep(100 * time.Millisecond)
	}
	t.Fatalf("server did not start within %v", timeout)
}

func getFreePort() (int, error) {
	addr, err := net.ResolveTCPAddr("tcp", "localhost:0")
	if err != nil {
		return 0, err
	}

	l, err := net.ListenTCP("tcp", addr)
	if err != nil {
		return 0, err
	}
	defer l.Close()
	return l.Addr().(*net.TCPAddr).Port, nil
}

// stubAnalyzer answers every analysis prompt with one fixed pattern, fenced
// the way chat models tend to fence JSON.
type stubAnalyzer struct{}

func (s *stubAnalyzer) GenerateAnalysis(ctx context.Context, system, user string) (string, error) {
	return "```json\n[{\"pattern_description\": \"Fire strategy sections must reference the responsible engineer\", \"examples\": [\"Rejected: missing engineer reference\"], \"confidence_score\": 0.8, \"recommendation\": \"Always name the certified fire engineer\"}]\n```", nil
}

// stubEmbeddingClient produces deterministic unit vectors from token hashes.
// Texts sharing words land close together, which is enough for similarity
// ordering in tests.
type stubEmbeddingClient struct{}

func (s *stubEmbeddingClient) GenerateEmbedding(ctx context.Context, text string, intent openai.Intent) ([]float32, error) {
	return stubEmbedding(text), nil
}

func (s *stubEmbeddingClient) GenerateEmbeddingBatch(ctx context.Context, texts []string, intent openai.Intent) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = stubEmbedding(text)
	}
	return out, nil
}

func stubEmbedding(text string) []float32 {
	embedding := make([]float32, testDimensions)

	word := make([]byte, 0, 32)
	addWord := func() {
		if len(word) == 0 {
			return
		}
		h := fnv.New32a()
		h.Write(word)
		embedding[h.Sum32()%testDimensions] += 1
		word = word[:0]
	}
	for i := 0; i < len(text); i++ {
		c := text[i]
		if c == ' ' || c == '\n' || c == '\t' || c == '.' || c == ',' {
			addWord()
			continue
		}
		word = append(word, c|0x20)
	}
	addWord()

	var norm float64
	for _, v := range embedding {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		embedding[0] = 1
		return embedding
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range embedding {
		embedding[i] *= scale
	}
	return embedding
}
