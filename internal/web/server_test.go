package web_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	sdkmetric "go.opentelemetry.io/otel/sdk/metric"

	"github.com/hokomura/kousei/internal/corrector"
	"github.com/hokomura/kousei/internal/observe"
	"github.com/hokomura/kousei/internal/web"
)

const sampleTranscript = "[0:00:01 - 0:00:27]\n" +
	"えーと、ベルトと申します。今日の講座はじゃあじゃあ始めます。\n"

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	metrics, err := observe.NewMetrics(mp)
	if err != nil {
		t.Fatalf("NewMetrics: %v", err)
	}

	factory := func() *corrector.Orchestrator {
		return corrector.New(
			corrector.DefaultPolicy(),
			corrector.Rates{InputUSDPerMTok: 0.035, OutputUSDPerMTok: 0.14},
			0, nil,
			corrector.WithMetrics(metrics),
			corrector.WithSource("web"),
		)
	}

	srv := httptest.NewServer(web.New(":0", factory, web.WithMetrics(metrics)).Handler())
	t.Cleanup(srv.Close)
	return srv
}

func postCorrect(t *testing.T, srv *httptest.Server, body string) (*http.Response, []byte) {
	t.Helper()

	resp, err := http.Post(srv.URL+"/correct", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /correct: %v", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return resp, data
}

func TestCorrect_ValidTranscript(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	reqBody, _ := json.Marshal(map[string]string{"text": sampleTranscript})
	resp, data := postCorrect(t, srv, string(reqBody))

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, http.StatusOK, data)
	}

	var body struct {
		Corrected string `json:"corrected"`
		Segments  []struct {
			ID          int      `json:"id"`
			Original    string   `json:"original"`
			Corrected   string   `json:"corrected"`
			Corrections []string `json:"corrections"`
			Quality     float64  `json:"quality"`
		} `json:"segments"`
		Report corrector.Report `json:"report"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if !strings.Contains(body.Corrected, "ベルトン") {
		t.Errorf("corrected text missing term replacement: %q", body.Corrected)
	}
	if !strings.Contains(body.Corrected, "[0:00:01 - 0:00:27]") {
		t.Errorf("corrected text missing timecode marker: %q", body.Corrected)
	}
	if body.Report.Segments != 1 {
		t.Errorf("report segments = %d, want 1", body.Report.Segments)
	}
	wantRate := float64(body.Report.AcceptableSegments)
	if body.Report.SuccessRate != wantRate {
		t.Errorf("report success rate = %v, want %v", body.Report.SuccessRate, wantRate)
	}
	if len(body.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(body.Segments))
	}
	seg := body.Segments[0]
	if seg.ID != 1 {
		t.Errorf("segment id = %d, want 1", seg.ID)
	}
	if seg.Original == seg.Corrected {
		t.Error("segment text was not corrected")
	}
	if len(seg.Corrections) == 0 {
		t.Error("segment has no applied corrections")
	}
	if seg.Quality <= 0 || seg.Quality > 1 {
		t.Errorf("segment quality = %v, want (0, 1]", seg.Quality)
	}
}

func TestCorrect_EmptyText(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, data := postCorrect(t, srv, `{"text": ""}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, http.StatusBadRequest, data)
	}
}

func TestCorrect_InvalidJSON(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, _ := postCorrect(t, srv, `{"text": `)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestCorrect_UnknownField(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, _ := postCorrect(t, srv, `{"transcript": "x"}`)
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestCorrect_UnstructuredText(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	reqBody, _ := json.Marshal(map[string]string{"text": "no timecode markers here"})
	resp, data := postCorrect(t, srv, string(reqBody))
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want %d: %s", resp.StatusCode, http.StatusUnprocessableEntity, data)
	}

	var body struct {
		Error string `json:"error"`
	}
	if err := json.Unmarshal(data, &body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body.Error == "" {
		t.Error("error message is empty")
	}
}

func TestCorrect_MethodNotAllowed(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/correct")
	if err != nil {
		t.Fatalf("GET /correct: %v", err)
	}
	defer resp.Body.Close()

	// GET falls through to the static file server, which has no such file.
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestIndexPage(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/")
	if err != nil {
		t.Fatalf("GET /: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if !strings.Contains(string(data), "kousei") {
		t.Error("index page missing application name")
	}
}

func TestHealthEndpoints(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	for _, path := range []string{"/healthz", "/readyz"} {
		resp, err := http.Get(srv.URL + path)
		if err != nil {
			t.Fatalf("GET %s: %v", path, err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			t.Errorf("GET %s status = %d, want %d", path, resp.StatusCode, http.StatusOK)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Errorf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
}

func TestRequestIDEcho(t *testing.T) {
	t.Parallel()
	srv := newTestServer(t)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/healthz", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("X-Request-ID", "test-id-123")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("GET /healthz: %v", err)
	}
	resp.Body.Close()

	if got := resp.Header.Get("X-Request-ID"); got != "test-id-123" {
		t.Errorf("X-Request-ID = %q, want %q", got, "test-id-123")
	}
}
