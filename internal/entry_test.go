package internal

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/starford/sixthdegree/internal/graph"
	"github.com/starford/sixthdegree/internal/seed"
	"github.com/starford/sixthdegree/internal/testutil"
)

func TestReadyHandler(t *testing.T) {
	st := testutil.TestStore(t)
	testutil.SeedDiamond(t, st)
	cache := graph.NewCache(st)
	c := &components{
		cfg:    NewDefaultConfig(),
		logger: slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError})),
		store:  st,
		cache:  cache,
	}

	w := httptest.NewRecorder()
	readyHandler(c)(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var body map[string]any
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["cacheLoaded"] != false {
		t.Errorf("cacheLoaded = %v, want false", body["cacheLoaded"])
	}

	c.prepare(context.Background(), seed.NewImporter(st, cache, c.logger))
	w = httptest.NewRecorder()
	readyHandler(c)(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	_ = json.Unmarshal(w.Body.Bytes(), &body)
	if body["cacheLoaded"] != true {
		t.Errorf("cacheLoaded = %v after warmup, want true", body["cacheLoaded"])
	}

	st.Close()
	w = httptest.NewRecorder()
	readyHandler(c)(w, httptest.NewRequest(http.MethodGet, "/health/ready", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status after close = %d, want 503", w.Code)
	}
}

func TestRunRequiresConfig(t *testing.T) {
	if err := Run(context.Background()); err == nil {
		t.Fatal("Run without config should fail")
	}
}

func TestPrintSeedResult(t *testing.T) {
	var buf bytes.Buffer
	if err := printSeedResult(&buf, "imported", "seed.yaml", seed.Result{Persons: 2, Connections: 1, Checksum: "abc"}); err != nil {
		t.Fatal(err)
	}
	if got := buf.String(); got != "imported seed.yaml: 2 persons, 1 connections (sha256 abc)\n" {
		t.Errorf("output = %q", got)
	}
}

func TestRunExportRequiresPath(t *testing.T) {
	if err := RunExport(context.Background(), ""); err == nil {
		t.Fatal("expected error for empty path")
	}
}
