package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nbrem108/sprintdeck/internal/api"
	"github.com/nbrem108/sprintdeck/internal/config"
	"github.com/nbrem108/sprintdeck/internal/model"
)

type recordedRequest struct {
	Method string
	Path   string
	Body   string
	Auth   string
}

type testServer struct {
	server   *httptest.Server
	requests []recordedRequest
}

func newTestServer(t *testing.T, responses map[string]string) *testServer {
	t.Helper()
	ts := &testServer{}

	ts.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body bytes.Buffer
		body.ReadFrom(r.Body)

		ts.requests = append(ts.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.RequestURI(),
			Body:   body.String(),
			Auth:   r.Header.Get("Authorization"),
		})

		key := r.Method + " " + r.URL.Path
		if resp, ok := responses[key]; ok {
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(resp))
			return
		}

		w.WriteHeader(404)
		w.Write([]byte(`{"error":{"message":"not found","type":"not_found"}}`))
	}))

	t.Cleanup(ts.server.Close)
	return ts
}

func (ts *testServer) client() *apiClient {
	return &apiClient{
		baseURL:    ts.server.URL,
		token:      "test-token",
		httpClient: ts.server.Client(),
	}
}

var ctx = context.Background()

func sampleRequest() api.ExportRequest {
	return api.ExportRequest{
		Presentation: &model.Presentation{
			ID:    "p1",
			Title: "Sprint 9 Review",
			Slides: []model.Slide{
				{Kind: model.SlideTitle, Title: "Sprint 9 Review"},
			},
		},
		Options: model.ExportOptions{Quality: model.QualityMedium},
	}
}

func exportResponse(payload, fileName string, cacheHit bool) string {
	b, _ := json.Marshal(map[string]any{
		"file_name":      fileName,
		"format":         "markdown",
		"byte_size":      len(payload),
		"content_base64": base64.StdEncoding.EncodeToString([]byte(payload)),
		"cache_hit":      cacheHit,
		"quality_report": map[string]any{"score": 100.0, "status": "passed"},
	})
	return string(b)
}

func TestRunExportWritesArtifact(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"POST /export": exportResponse("# Sprint 9 Review\n", "sprint-9-review.md", false),
	})
	dir := t.TempDir()

	err := runExport(ctx, ts.client(), sampleRequest(), model.FormatMarkdown, dir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "sprint-9-review.md"))
	if err != nil {
		t.Fatalf("artifact not written: %v", err)
	}
	if string(data) != "# Sprint 9 Review\n" {
		t.Errorf("artifact content = %q", data)
	}

	if len(ts.requests) != 1 {
		t.Fatalf("expected 1 request, got %d", len(ts.requests))
	}
	r := ts.requests[0]
	if r.Auth != "Bearer test-token" {
		t.Errorf("auth = %q, want Bearer test-token", r.Auth)
	}

	var sent api.ExportRequest
	if err := json.Unmarshal([]byte(r.Body), &sent); err != nil {
		t.Fatalf("body parse error: %v", err)
	}
	if sent.Options.Format != model.FormatMarkdown {
		t.Errorf("sent format = %q, want markdown", sent.Options.Format)
	}
	if sent.Presentation == nil || sent.Presentation.Title != "Sprint 9 Review" {
		t.Errorf("sent presentation = %+v", sent.Presentation)
	}
}

func TestRunExportServerError(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(400)
		w.Write([]byte(`{"error":{"code":"FORMAT_ERROR","message":"unsupported format"}}`))
	}))
	defer ts.Close()

	client := &apiClient{baseURL: ts.URL, token: "t", httpClient: ts.Client()}
	err := runExport(ctx, client, sampleRequest(), model.FormatPDF, t.TempDir())
	if err == nil {
		t.Fatal("expected error for 400 response")
	}
	if !strings.Contains(err.Error(), "400") {
		t.Errorf("error = %q, want it to contain '400'", err.Error())
	}
}

func TestBuildExportRequestFromFile(t *testing.T) {
	doc, err := json.Marshal(sampleRequest())
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(t.TempDir(), "review.json")
	if err := os.WriteFile(path, doc, 0o644); err != nil {
		t.Fatal(err)
	}

	req, err := buildExportRequest(ctx, path, 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if req.Presentation == nil || req.Presentation.ID != "p1" {
		t.Errorf("presentation = %+v", req.Presentation)
	}
}

func TestBuildExportRequestFileWithoutPresentation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "review.json")
	if err := os.WriteFile(path, []byte(`{"options":{"format":"pdf"}}`), 0o644); err != nil {
		t.Fatal(err)
	}

	_, err := buildExportRequest(ctx, path, 0, 0)
	if err == nil {
		t.Fatal("expected error for file without presentation")
	}
	if !strings.Contains(err.Error(), "no presentation") {
		t.Errorf("error = %q", err.Error())
	}
}

func TestBuildExportRequestFromTracker(t *testing.T) {
	tracker := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch {
		case strings.HasPrefix(r.URL.Path, "/rest/agile/1.0/board/7/sprint"):
			w.Write([]byte(`{"values":[
				{"id":42,"name":"Sprint 42","state":"active","goal":"Ship it"},
				{"id":43,"name":"Sprint 43","state":"future"}
			],"isLast":true}`))
		case strings.HasPrefix(r.URL.Path, "/rest/agile/1.0/sprint/42/issue"):
			w.Write([]byte(`{"issues":[
				{"key":"SD-1","fields":{"summary":"Add login","status":{"name":"Done"},"customfield_10016":5}},
				{"key":"SD-2","fields":{"summary":"Fix crash","status":{"name":"In Progress"},"customfield_10016":3}}
			],"total":2,"startAt":0,"maxResults":50}`))
		case strings.HasPrefix(r.URL.Path, "/rest/agile/1.0/sprint/43/issue"):
			w.Write([]byte(`{"issues":[
				{"key":"SD-3","fields":{"summary":"Dark mode","status":{"name":"To Do"}}}
			],"total":1,"startAt":0,"maxResults":50}`))
		default:
			w.WriteHeader(404)
		}
	}))
	defer tracker.Close()

	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("SPRINTDECK_TRACKER_BASE_URL", tracker.URL)
	t.Setenv("SPRINTDECK_TRACKER_BOARD_ID", "7")

	req, err := buildExportRequest(ctx, "", 0, 0)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if req.Presentation == nil {
		t.Fatal("no presentation composed")
	}
	if req.Presentation.SprintName != "Sprint 42" {
		t.Errorf("sprint name = %q", req.Presentation.SprintName)
	}
	if len(req.Issues) != 2 {
		t.Errorf("issues = %d, want 2", len(req.Issues))
	}
	if req.Metrics == nil || req.Metrics.CompletedPoints != 5 {
		t.Errorf("metrics = %+v", req.Metrics)
	}
	if len(req.Upcoming) != 1 || req.Upcoming[0].Key != "SD-3" {
		t.Errorf("upcoming = %+v, want SD-3 from the future sprint", req.Upcoming)
	}
}

func TestFormatsEndpoint(t *testing.T) {
	ts := newTestServer(t, map[string]string{
		"GET /formats": `[{"format":"pdf","extension":"pdf"},{"format":"markdown","extension":"md"}]`,
	})

	resp, err := ts.client().get(ctx, "/formats")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var formats []struct {
		Format    string `json:"format"`
		Extension string `json:"extension"`
	}
	if err := decodeJSON(resp, &formats); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(formats) != 2 || formats[0].Format != "pdf" {
		t.Errorf("formats = %+v", formats)
	}
}

func TestStatusCommand_Stopped(t *testing.T) {
	ts := newTestServer(t, map[string]string{})
	ts.server.Close()

	_, err := ts.client().get(ctx, "/health")
	if err == nil {
		t.Fatal("expected error for stopped server")
	}
	if !strings.Contains(err.Error(), "not reachable") {
		t.Errorf("error = %q, want it to mention 'not reachable'", err.Error())
	}
}

func TestNoColorFlag(t *testing.T) {
	old := noColor
	defer func() { noColor = old }()

	noColor = true
	result := colorize(colorGreen, "test message")
	if strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=true should not contain ANSI codes, got %q", result)
	}
	if result != "test message" {
		t.Errorf("result = %q, want %q", result, "test message")
	}

	noColor = false
	result = colorize(colorGreen, "test message")
	if !strings.Contains(result, "\033[") {
		t.Errorf("colorize with noColor=false should contain ANSI codes, got %q", result)
	}
}

func TestDecodeJSON_ErrorResponse(t *testing.T) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(401)
		w.Write([]byte(`{"error":{"message":"unauthorized","type":"auth_error"}}`))
	}))
	defer ts.Close()

	client := &apiClient{
		baseURL:    ts.URL,
		token:      "bad-token",
		httpClient: ts.Client(),
	}

	resp, err := client.get(ctx, "/stats")
	if err != nil {
		t.Fatalf("unexpected transport error: %v", err)
	}

	var result any
	err = decodeJSON(resp, &result)
	if err == nil {
		t.Fatal("expected error for 401 response")
	}
	if !strings.Contains(err.Error(), "401") {
		t.Errorf("error = %q, want it to contain '401'", err.Error())
	}
}

func TestCacheStrategySelection(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"lru", "lru"},
		{"LRU", "lru"},
		{"fifo", "fifo"},
		{"adaptive", "adaptive"},
		{"unknown", "lru"},
		{"", "lru"},
	}
	for _, tt := range tests {
		if got := cacheStrategy(tt.name).Name(); got != tt.want {
			t.Errorf("cacheStrategy(%q).Name() = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestConfigShowAll(t *testing.T) {
	cfg := config.Config{}
	cfg.Server.Port = 4600
	cfg.Export.CacheStrategy = "lru"

	keys := config.ShowAll(cfg)
	if len(keys) == 0 {
		t.Fatal("expected non-empty keys from ShowAll")
	}

	found := false
	for _, k := range keys {
		if k.Key == "server.port" && k.Value == "4600" {
			found = true
		}
	}
	if !found {
		t.Error("expected to find server.port=4600 in ShowAll output")
	}
}
