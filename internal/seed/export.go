package seed

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/starford/sixthdegree/internal/store"
)

// Export writes the store contents to path in the seed format, so that
// importing the file reproduces the same graph.
func Export(ctx context.Context, src store.Source, path string) (Result, error) {
	persons, err := src.ListPersons(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("seed: export persons: %w", err)
	}
	conns, err := src.ListConnections(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("seed: export connections: %w", err)
	}

	f := File{
		Persons:     make([]Person, len(persons)),
		Connections: make([]Connection, 0, len(conns)),
	}
	names := make(map[int64]string, len(persons))
	for i, p := range persons {
		names[p.ID] = p.Name
		f.Persons[i] = Person{Name: p.Name, WikipediaURL: p.WikipediaURL, Category: p.Category}
	}
	for _, c := range conns {
		from, ok1 := names[c.FromPersonID]
		to, ok2 := names[c.ToPersonID]
		if !ok1 || !ok2 {
			continue
		}
		f.Connections = append(f.Connections, Connection{From: from, To: to})
	}

	data, err := yaml.Marshal(&f)
	if err != nil {
		return Result{}, fmt.Errorf("seed: encode: %w", err)
	}
	if err := writeAtomic(path, data); err != nil {
		return Result{}, err
	}
	return Result{Persons: len(f.Persons), Connections: len(f.Connections), Checksum: checksum(data)}, nil
}

// writeAtomic writes content via tmp file, fsync and rename, so a watcher
// never sees a partial file.
func writeAtomic(path string, content []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("seed: mkdir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".sixthdegree-tmp-*")
	if err != nil {
		return fmt.Errorf("seed: create temp: %w", err)
	}
	tmpName := tmp.Name()

	success := false
	defer func() {
		if !success {
			_ = tmp.Close()
			_ = os.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(content); err != nil {
		return fmt.Errorf("seed: write temp: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("seed: fsync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("seed: close temp: %w", err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return fmt.Errorf("seed: chmod: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("seed: rename: %w", err)
	}
	success = true
	return nil
}
