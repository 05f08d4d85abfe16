package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/felixgeelhaar/multiocr/internal/engine/runtime"
	"github.com/felixgeelhaar/multiocr/internal/engine/sdk"
	"github.com/felixgeelhaar/multiocr/pkg/observability"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeService struct {
	health  runtime.HealthReport
	engines []runtime.EngineInfo
	process func(ctx context.Context, input string, maxDepth int) *runtime.BatchReport
}

func (f *fakeService) ProcessFiles(ctx context.Context, input string, maxDepth int) *runtime.BatchReport {
	return f.process(ctx, input, maxDepth)
}

func (f *fakeService) Health() runtime.HealthReport {
	return f.health
}

func (f *fakeService) Describe() []runtime.EngineInfo {
	return f.engines
}

func (f *fakeService) Metrics() runtime.Snapshot {
	return runtime.Snapshot{Engines: []runtime.EngineMetrics{{Engine: "Tesseract"}}}
}

func failedReport(err error) *runtime.BatchReport {
	report := &runtime.BatchReport{Health: sdk.HealthYellow}
	report.Fail(err)
	return report
}

func newTestServer(svc Service, opts ...Option) *Server {
	return NewServer(DefaultServerConfig(), svc, observability.Discard(), opts...)
}

func do(t *testing.T, s *Server, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	return rec
}

func TestHealth(t *testing.T) {
	t.Run("green with reachable sinks", func(t *testing.T) {
		checks := observability.NewChecks()
		checks.Register("file", func(context.Context) error { return nil })
		s := newTestServer(&fakeService{health: runtime.HealthReport{Status: sdk.HealthGreen}}, WithChecks(checks))

		rec := do(t, s, http.MethodGet, "/health", nil)
		require.Equal(t, http.StatusOK, rec.Code)

		var resp HealthResponse
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
		assert.Equal(t, sdk.HealthGreen, resp.Status)
		require.Len(t, resp.Sinks, 1)
		assert.True(t, resp.Sinks[0].OK)
	})

	t.Run("red is unavailable", func(t *testing.T) {
		s := newTestServer(&fakeService{health: runtime.HealthReport{Status: sdk.HealthRed}})
		rec := do(t, s, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	})

	t.Run("failing sink is unavailable", func(t *testing.T) {
		checks := observability.NewChecks()
		checks.Register("redis", func(context.Context) error { return errors.New("connection refused") })
		s := newTestServer(&fakeService{health: runtime.HealthReport{Status: sdk.HealthYellow}}, WithChecks(checks))

		rec := do(t, s, http.MethodGet, "/health", nil)
		assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
		assert.Contains(t, rec.Body.String(), "connection refused")
	})
}

func TestEngines(t *testing.T) {
	s := newTestServer(&fakeService{engines: []runtime.EngineInfo{
		{Name: "Tesseract", Version: "5.3.0", Health: sdk.HealthYellow},
	}})

	rec := do(t, s, http.MethodGet, "/engines", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp struct {
		Engines []runtime.EngineInfo `json:"engines"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Engines, 1)
	assert.Equal(t, "5.3.0", resp.Engines[0].Version)
}

func TestMetrics(t *testing.T) {
	counters := observability.NewInMemoryMetrics()
	counters.Counter(observability.MetricFilesDiscovered, 3)
	s := newTestServer(&fakeService{}, WithCounters(counters))

	rec := do(t, s, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp MetricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Engines, 1)
	require.NotNil(t, resp.Counters)
	assert.Equal(t, int64(3), resp.Counters.Counters[observability.MetricFilesDiscovered])
}

func TestProcess(t *testing.T) {
	t.Run("runs a batch with the default depth", func(t *testing.T) {
		var gotInput string
		var gotDepth int
		s := newTestServer(&fakeService{process: func(_ context.Context, input string, depth int) *runtime.BatchReport {
			gotInput, gotDepth = input, depth
			return &runtime.BatchReport{RunID: "r1", Input: input, Health: sdk.HealthGreen}
		}})

		rec := do(t, s, http.MethodPost, "/process", ProcessRequest{Path: "/scans"})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "/scans", gotInput)
		assert.Equal(t, 6, gotDepth)

		var report runtime.BatchReport
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &report))
		assert.Equal(t, "r1", report.RunID)
	})

	t.Run("honors max_depth", func(t *testing.T) {
		var gotDepth int
		s := newTestServer(&fakeService{process: func(_ context.Context, _ string, depth int) *runtime.BatchReport {
			gotDepth = depth
			return &runtime.BatchReport{}
		}})
		depth := 0
		rec := do(t, s, http.MethodPost, "/process", ProcessRequest{Path: "/scans", MaxDepth: &depth})
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, 0, gotDepth)
	})

	t.Run("rejects bad requests", func(t *testing.T) {
		s := newTestServer(&fakeService{})

		rec := do(t, s, http.MethodPost, "/process", map[string]any{})
		assert.Equal(t, http.StatusBadRequest, rec.Code)

		depth := -1
		rec = do(t, s, http.MethodPost, "/process", ProcessRequest{Path: "/x", MaxDepth: &depth})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("invalid input path is a bad request", func(t *testing.T) {
		s := newTestServer(&fakeService{process: func(context.Context, string, int) *runtime.BatchReport {
			return failedReport(sdk.InputValidationError("Invalid input path: /nope", nil))
		}})
		rec := do(t, s, http.MethodPost, "/process", ProcessRequest{Path: "/nope"})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "Invalid input path: /nope")
	})

	t.Run("filesystem failure is internal", func(t *testing.T) {
		s := newTestServer(&fakeService{process: func(context.Context, string, int) *runtime.BatchReport {
			return failedReport(sdk.FileSystemError("Cannot read directory: /root", nil))
		}})
		rec := do(t, s, http.MethodPost, "/process", ProcessRequest{Path: "/root"})
		assert.Equal(t, http.StatusInternalServerError, rec.Code)
	})

	t.Run("concurrent batch is rejected", func(t *testing.T) {
		started := make(chan struct{})
		release := make(chan struct{})
		s := newTestServer(&fakeService{process: func(context.Context, string, int) *runtime.BatchReport {
			close(started)
			<-release
			return &runtime.BatchReport{}
		}})

		done := make(chan int)
		go func() {
			done <- do(t, s, http.MethodPost, "/process", ProcessRequest{Path: "/a"}).Code
		}()
		<-started

		rec := do(t, s, http.MethodPost, "/process", ProcessRequest{Path: "/b"})
		assert.Equal(t, http.StatusConflict, rec.Code)

		close(release)
		assert.Equal(t, http.StatusOK, <-done)
	})
}

func TestRequestID(t *testing.T) {
	s := newTestServer(&fakeService{})

	rec := do(t, s, http.MethodGet, "/engines", nil)
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	req := httptest.NewRequest(http.MethodGet, "/engines", nil)
	req.Header.Set("X-Request-ID", "req-42")
	rec = httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, req)
	assert.Equal(t, "req-42", rec.Header().Get("X-Request-ID"))
}
