//go:build e2e

package e2e

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"

	"github.com/cloo-solutions/citedoc/internal/api/handlers"
	"github.com/cloo-solutions/citedoc/internal/extract"
	"github.com/cloo-solutions/citedoc/internal/repository"
	"github.com/cloo-solutions/citedoc/internal/server"
	"github.com/cloo-solutions/citedoc/internal/service"
	"github.com/cloo-solutions/citedoc/internal/storage"
	"github.com/cloo-solutions/citedoc/internal/testutil"
	"github.com/jackc/pgx/v5/pgxpool"
)

const testBucket = "test-documents"

// E2ETestEnv is a running citedoc server backed by Postgres and RustFS
// containers. No embedding or generation provider is configured, so the
// server indexes with hash vectors and answers extractively.
type E2ETestEnv struct {
	T          *testing.T
	Ctx        context.Context
	Pool       *pgxpool.Pool
	S3Client   *storage.S3Client
	ServerURL  string
	HTTPClient *http.Client

	cliPath string
}

// SetupE2EEnv starts the containers and the server. Everything is released
// through t.Cleanup.
func SetupE2EEnv(t *testing.T) *E2ETestEnv {
	t.Helper()
	ctx := context.Background()

	pgC := testutil.NewPostgresContainer(ctx, t)
	s3C := testutil.NewRustFSContainer(ctx, t)
	pool := testutil.NewTestPool(ctx, t, pgC, "../../migrations")

	files, err := storage.NewS3Client(ctx, storage.S3ClientConfig{
		Endpoint:        s3C.Endpoint(),
		Region:          "us-east-1",
		AccessKeyID:     testutil.RustFSCredential,
		SecretAccessKey: testutil.RustFSCredential,
		Bucket:          testBucket,
		UsePathStyle:    true,
	})
	if err != nil {
		t.Fatalf("s3 client: %v", err)
	}
	if err := files.EnsureBucket(ctx); err != nil {
		t.Fatalf("create bucket: %v", err)
	}

	srv := httptest.NewServer(newRouter(pool, files))
	t.Cleanup(srv.Close)

	return &E2ETestEnv{
		T:          t,
		Ctx:        ctx,
		Pool:       pool,
		S3Client:   files,
		ServerURL:  srv.URL,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	}
}

func newRouter(pool *pgxpool.Pool, files *storage.S3Client) http.Handler {
	store := repository.NewPostgresStore(pool)
	embedder := service.NewEmbedder(nil)
	answerCfg := service.DefaultAnswerConfig()

	documents := service.NewDocumentService(store, embedder, files, extract.NewPDF(), service.DocumentServiceConfig{
		Chunking: service.DefaultChunkConfig(),
	})
	retrieval := service.NewRetrievalService(store, embedder)
	answers := service.NewAnswerService(store, retrieval, nil, service.NewReconciler(service.DefaultReconcilerConfig()), answerCfg)

	return server.NewRouter(server.RouterConfig{
		DocumentHandler: handlers.NewDocumentHandler(documents, retrieval),
		AskHandler:      handlers.NewAskHandler(answers),
		HealthHandler: handlers.NewHealthHandler(handlers.Features{
			Storage:  true,
			Database: true,
			Strategy: string(answerCfg.Strategy),
		}),
	})
}

// BuildCLI compiles cmd/citedoc into a per-test temp dir.
func (e *E2ETestEnv) BuildCLI() {
	e.T.Helper()
	e.cliPath = filepath.Join(e.T.TempDir(), "citedoc")

	cmd := exec.Command("go", "build", "-o", e.cliPath, "./cmd/citedoc")
	cmd.Dir = "../.."
	if out, err := cmd.CombinedOutput(); err != nil {
		e.T.Fatalf("build citedoc: %v\n%s", err, out)
	}
}

// RunCLI runs the built CLI in workDir. The config home is pointed at
// workDir so a developer's saved settings never leak into the run.
func (e *E2ETestEnv) RunCLI(workDir string, args ...string) (string, error) {
	if e.cliPath == "" {
		e.T.Fatal("RunCLI called before BuildCLI")
	}
	cmd := exec.Command(e.cliPath, args...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(),
		"CITEDOC_API_URL="+e.ServerURL,
		"XDG_CONFIG_HOME="+workDir,
		"HOME="+workDir,
	)
	out, err := cmd.CombinedOutput()
	return string(out), err
}

// APIResponse is a decoded success envelope.
type APIResponse struct {
	Data   json.RawMessage `json:"data"`
	Status int             `json:"-"`
}

// StatusError is returned for any response with a 4xx or 5xx status.
type StatusError struct {
	Status  int
	Message string `json:"error"`
	Code    string `json:"code"`
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Status, e.Message)
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Status
	}
	return 0
}

func (e *E2ETestEnv) Get(path string) (*APIResponse, error) {
	return e.doJSON(http.MethodGet, path, nil)
}

func (e *E2ETestEnv) Post(path string, body any) (*APIResponse, error) {
	return e.doJSON(http.MethodPost, path, body)
}

func (e *E2ETestEnv) Delete(path string) (*APIResponse, error) {
	return e.doJSON(http.MethodDelete, path, nil)
}

func (e *E2ETestEnv) doJSON(method, path string, body any) (*APIResponse, error) {
	var payload io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode body: %w", err)
		}
		payload = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(e.Ctx, method, e.ServerURL+path, payload)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.send(req)
}

func (e *E2ETestEnv) send(req *http.Request) (*APIResponse, error) {
	resp, err := e.HTTPClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= http.StatusBadRequest {
		se := &StatusError{Status: resp.StatusCode}
		if json.Unmarshal(raw, se) != nil {
			se.Message = string(raw)
		}
		return nil, se
	}

	out := &APIResponse{Status: resp.StatusCode}
	if resp.StatusCode == http.StatusNoContent {
		return out, nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return out, nil
}

// UploadDocument sends content as a multipart upload in the "document" field.
func (e *E2ETestEnv) UploadDocument(filename, contentType string, content []byte) (*APIResponse, error) {
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	header := textproto.MIMEHeader{}
	header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="document"; filename=%q`, filename))
	header.Set("Content-Type", contentType)
	part, err := mw.CreatePart(header)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(e.Ctx, http.MethodPost, e.ServerURL+"/documents", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return e.send(req)
}

// DownloadFile fetches url, following the redirect to the presigned object.
func (e *E2ETestEnv) DownloadFile(url string) ([]byte, error) {
	resp, err := e.HTTPClient.Get(url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &StatusError{Status: resp.StatusCode, Message: "download failed"}
	}
	return io.ReadAll(resp.Body)
}

func SHA256Sum(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
