package seed

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/starford/sixthdegree/internal/graph"
	"github.com/starford/sixthdegree/internal/testutil"
)

const diamondYAML = `persons:
  - name: A
    wikipedia_url: https://en.wikipedia.org/wiki/A
    category: actor
  - name: B
  - name: C
  - name: D
connections:
  - {from: A, to: B}
  - {from: B, to: C}
  - {from: A, to: D}
  - {from: D, to: C}
`

func quietLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func writeSeed(t *testing.T, dir, content string) string {
	t.Helper()
	path := filepath.Join(dir, "seed.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestParse(t *testing.T) {
	f, err := Parse([]byte(diamondYAML))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(f.Persons) != 4 || len(f.Connections) != 4 {
		t.Fatalf("persons = %d, connections = %d", len(f.Persons), len(f.Connections))
	}
	if f.Persons[0].Category == nil || *f.Persons[0].Category != "actor" {
		t.Errorf("category = %v", f.Persons[0].Category)
	}
	if f.Persons[1].Category != nil {
		t.Errorf("missing category should be nil")
	}
}

func TestParseInvalid(t *testing.T) {
	cases := map[string]string{
		"unknown person": "persons:\n  - name: A\nconnections:\n  - {from: A, to: Z}\n",
		"duplicate name": "persons:\n  - name: A\n  - name: A\n",
		"empty name":     "persons:\n  - name: \"\"\n",
		"bad url":        "persons:\n  - name: A\n    wikipedia_url: not a url\n",
		"missing to":     "persons:\n  - name: A\nconnections:\n  - {from: A}\n",
		"malformed yaml": "persons: [",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestImport(t *testing.T) {
	st := testutil.TestStore(t)
	cache := graph.NewCache(st)
	im := NewImporter(st, cache, quietLogger())
	path := writeSeed(t, t.TempDir(), diamondYAML)

	res, err := im.Import(context.Background(), path)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if res.Persons != 4 || res.Connections != 4 || res.Skipped {
		t.Errorf("result = %+v", res)
	}
	if !cache.Loaded() || cache.Current().EdgeCount() != 4 {
		t.Fatalf("cache not reloaded after import")
	}

	n, _ := st.CountConnections(context.Background())
	if n != 4 {
		t.Errorf("connections = %d, want 4", n)
	}

	// Same content is skipped only by ImportIfChanged.
	res, err = im.ImportIfChanged(context.Background(), path)
	if err != nil || !res.Skipped {
		t.Errorf("ImportIfChanged = %+v, %v; want skipped", res, err)
	}
	res, err = im.Import(context.Background(), path)
	if err != nil || res.Skipped {
		t.Errorf("Import = %+v, %v; want not skipped", res, err)
	}
}

func TestImportKeepsIDsOfSurvivingPersons(t *testing.T) {
	st := testutil.TestStore(t)
	im := NewImporter(st, nil, quietLogger())
	dir := t.TempDir()

	if _, err := im.Import(context.Background(), writeSeed(t, dir, diamondYAML)); err != nil {
		t.Fatal(err)
	}
	a1, _ := st.FindPersonByName(context.Background(), "A")

	trimmed := strings.Replace(diamondYAML, "  - name: D\n", "", 1)
	trimmed = strings.Replace(trimmed, "  - {from: A, to: D}\n  - {from: D, to: C}\n", "", 1)
	if _, err := im.Import(context.Background(), writeSeed(t, dir, trimmed)); err != nil {
		t.Fatal(err)
	}
	a2, _ := st.FindPersonByName(context.Background(), "A")
	if a1.ID != a2.ID {
		t.Errorf("id of A changed: %d -> %d", a1.ID, a2.ID)
	}
	if _, err := st.FindPersonByName(context.Background(), "D"); err == nil {
		t.Error("D should have been removed")
	}
}

func TestImportInvalidLeavesStoreUntouched(t *testing.T) {
	st := testutil.TestStore(t)
	testutil.SeedDiamond(t, st)
	im := NewImporter(st, nil, quietLogger())

	path := writeSeed(t, t.TempDir(), "persons:\n  - name: A\nconnections:\n  - {from: A, to: Q}\n")
	if _, err := im.Import(context.Background(), path); err == nil {
		t.Fatal("expected error")
	}
	n, _ := st.CountPersons(context.Background())
	if n != 5 {
		t.Errorf("persons = %d, want 5", n)
	}
}

type countingReloader struct {
	cache *graph.Cache
	n     atomic.Int32
}

func (r *countingReloader) Reload(ctx context.Context) (*graph.Snapshot, error) {
	r.n.Add(1)
	return r.cache.Reload(ctx)
}

// eventually polls fn every tick until it returns true or timeout elapses.
func eventually(t *testing.T, timeout, tick time.Duration, fn func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(tick)
	}
	t.Error(msg)
}

func TestWatch_ReimportsOnChange(t *testing.T) {
	st := testutil.TestStore(t)
	rl := &countingReloader{cache: graph.NewCache(st)}
	im := NewImporter(st, rl, quietLogger())
	dir := t.TempDir()
	path := writeSeed(t, dir, diamondYAML)
	if _, err := im.Import(context.Background(), path); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go Watch(ctx, path, im, quietLogger())
	time.Sleep(100 * time.Millisecond)

	// Rewriting identical content does not trigger a reload.
	writeSeed(t, dir, diamondYAML)
	time.Sleep(2 * debounce)
	if got := rl.n.Load(); got != 1 {
		t.Errorf("reloads after identical write = %d, want 1", got)
	}

	writeSeed(t, dir, diamondYAML+"  - {from: C, to: A}\n")
	eventually(t, 5*time.Second, 50*time.Millisecond, func() bool {
		s := rl.cache.Current()
		return s != nil && s.EdgeCount() == 5
	}, "watcher did not re-import changed seed file")

	// Unrelated files in the directory are ignored.
	_ = os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("x"), 0o644)
	time.Sleep(2 * debounce)
	if got := rl.n.Load(); got != 2 {
		t.Errorf("reloads = %d, want 2", got)
	}
}
