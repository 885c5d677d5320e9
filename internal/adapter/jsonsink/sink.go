// Package jsonsink writes country records to a JSON file and reads them back.
package jsonsink

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/couchcryptid/outbreak-series-etl/internal/domain"
	"github.com/couchcryptid/outbreak-series-etl/internal/pipeline"
)

// Document is the file layout: records keyed by country name.
type Document struct {
	Countries map[string]domain.CountryRecord `json:"countries"`
}

// Sink implements pipeline.Loader for a single output file.
type Sink struct {
	path   string
	indent bool
	logger *slog.Logger
}

// New creates a Sink writing to path. Indented output is easier to diff by
// hand and several times larger.
func New(path string, indent bool, logger *slog.Logger) *Sink {
	return &Sink{path: path, indent: indent, logger: logger}
}

func (s *Sink) Name() string { return "file" }

// Load replaces the output file with the result. The file carries no
// timestamps, so identical input always produces identical bytes.
func (s *Sink) Load(_ context.Context, result pipeline.Result) error {
	data, err := Encode(result.Records, s.indent)
	if err != nil {
		return err
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}
	s.logger.Info("output written", "path", s.path, "countries", len(result.Records), "bytes", len(data))
	return nil
}

// Encode renders records as a Document.
func Encode(records []domain.CountryRecord, indent bool) ([]byte, error) {
	doc := Document{Countries: make(map[string]domain.CountryRecord, len(records))}
	for _, r := range records {
		doc.Countries[r.Country] = r
	}

	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(doc, "", "  ")
	} else {
		data, err = json.Marshal(doc)
	}
	if err != nil {
		return nil, fmt.Errorf("encode output: %w", err)
	}
	return append(data, '\n'), nil
}

// ReadFile loads a file written by Sink. Each record's Country is filled
// from its key.
func ReadFile(path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("read output: %w", err)
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("decode output %s: %w", path, err)
	}
	for name, rec := range doc.Countries {
		rec.Country = name
		doc.Countries[name] = rec
	}
	return doc, nil
}

func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write output: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("move output into place: %w", err)
	}
	return nil
}
