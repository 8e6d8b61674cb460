// Package seed loads persons and connections from a YAML seed file into the
// store and refreshes the graph cache.
package seed

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
	"gopkg.in/yaml.v3"

	"github.com/starford/sixthdegree/internal/graph"
	"github.com/starford/sixthdegree/internal/models"
	"github.com/starford/sixthdegree/internal/store"
)

// File is the on-disk seed format. Connections refer to persons by name.
type File struct {
	Persons     []Person     `yaml:"persons"`
	Connections []Connection `yaml:"connections"`
}

// Person is one seed person entry.
type Person struct {
	Name         string  `yaml:"name"`
	WikipediaURL string  `yaml:"wikipedia_url"`
	Category     *string `yaml:"category"`
}

// Validate enforces the person column limits.
func (p Person) Validate() error {
	return validation.ValidateStruct(&p,
		validation.Field(&p.Name, validation.Required, validation.Length(1, 255)),
		validation.Field(&p.WikipediaURL, validation.Length(0, 500), is.URL),
		validation.Field(&p.Category, validation.NilOrNotEmpty, validation.Length(1, 100)),
	)
}

// Connection is one directed seed edge.
type Connection struct {
	From string `yaml:"from"`
	To   string `yaml:"to"`
}

// Validate checks both endpoints are named.
func (c Connection) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.From, validation.Required),
		validation.Field(&c.To, validation.Required),
	)
}

// Validate checks every entry, name uniqueness, and that connections only
// name listed persons.
func (f *File) Validate() error {
	if err := validation.ValidateStruct(f,
		validation.Field(&f.Persons),
		validation.Field(&f.Connections),
	); err != nil {
		return err
	}

	names := make(map[string]struct{}, len(f.Persons))
	for _, p := range f.Persons {
		if _, dup := names[p.Name]; dup {
			return fmt.Errorf("duplicate person %q", p.Name)
		}
		names[p.Name] = struct{}{}
	}
	for i, c := range f.Connections {
		if _, ok := names[c.From]; !ok {
			return fmt.Errorf("connections[%d]: unknown person %q", i, c.From)
		}
		if _, ok := names[c.To]; !ok {
			return fmt.Errorf("connections[%d]: unknown person %q", i, c.To)
		}
	}
	return nil
}

// Parse decodes and validates seed YAML.
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("seed: parse: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, fmt.Errorf("seed: invalid: %w", err)
	}
	return &f, nil
}

func (f *File) models() ([]models.NewPerson, []models.NamedConnection) {
	persons := make([]models.NewPerson, len(f.Persons))
	for i, p := range f.Persons {
		persons[i] = models.NewPerson{Name: p.Name, WikipediaURL: p.WikipediaURL, Category: p.Category}
	}
	conns := make([]models.NamedConnection, len(f.Connections))
	for i, c := range f.Connections {
		conns[i] = models.NamedConnection{From: c.From, To: c.To}
	}
	return persons, conns
}

// Reloader rebuilds the graph cache after an import.
type Reloader interface {
	Reload(ctx context.Context) (*graph.Snapshot, error)
}

// Result describes one import attempt.
type Result struct {
	Persons     int
	Connections int
	Checksum    string
	// Skipped is set when the file content matched the last import.
	Skipped bool
}

// Importer replaces the store contents with a seed file.
type Importer struct {
	store    store.Store
	reloader Reloader
	logger   *slog.Logger

	mu      sync.Mutex
	lastSum string
}

// NewImporter creates an importer. reloader may be nil when no cache is running.
func NewImporter(st store.Store, reloader Reloader, logger *slog.Logger) *Importer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Importer{store: st, reloader: reloader, logger: logger}
}

// Import loads path unconditionally.
func (im *Importer) Import(ctx context.Context, path string) (Result, error) {
	return im.importFile(ctx, path, false)
}

// ImportIfChanged loads path unless its checksum matches the last import.
func (im *Importer) ImportIfChanged(ctx context.Context, path string) (Result, error) {
	return im.importFile(ctx, path, true)
}

func (im *Importer) importFile(ctx context.Context, path string, skipUnchanged bool) (Result, error) {
	im.mu.Lock()
	defer im.mu.Unlock()

	data, err := os.ReadFile(path)
	if err != nil {
		return Result{}, fmt.Errorf("seed: read %s: %w", path, err)
	}
	sum := checksum(data)
	if skipUnchanged && sum == im.lastSum {
		return Result{Checksum: sum, Skipped: true}, nil
	}

	f, err := Parse(data)
	if err != nil {
		return Result{}, err
	}
	persons, conns := f.models()
	if err := im.store.ReplaceAll(ctx, persons, conns); err != nil {
		return Result{}, fmt.Errorf("seed: replace: %w", err)
	}
	im.lastSum = sum

	res := Result{Persons: len(persons), Connections: len(conns), Checksum: sum}
	im.logger.Info("seed: imported",
		slog.String("path", path),
		slog.Int("persons", res.Persons),
		slog.Int("connections", res.Connections))

	if im.reloader != nil {
		if _, err := im.reloader.Reload(ctx); err != nil {
			// The store is already updated; the next reload picks it up.
			return res, fmt.Errorf("seed: reload cache: %w", err)
		}
	}
	return res, nil
}

// checksum returns the hex-encoded SHA-256 digest of data.
func checksum(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
