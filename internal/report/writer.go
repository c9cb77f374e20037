// Package report writes account reports to timestamped JSON files.
package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tradejournal/journal-engine/internal/keycase"
)

// ErrUnknownCase is returned for a key case other than snake or camel.
var ErrUnknownCase = errors.New("report: unknown key case")

// Writer renders reports into a directory, one file per run.
type Writer struct {
	dir     string
	keyCase string
	now     func() time.Time
}

// NewWriter creates a writer. keyCase is keycase.Snake or keycase.Camel;
// empty means snake.
func NewWriter(dir, keyCase string) (*Writer, error) {
	switch keyCase {
	case "":
		keyCase = keycase.Snake
	case keycase.Snake, keycase.Camel:
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownCase, keyCase)
	}
	return &Writer{dir: dir, keyCase: keyCase, now: time.Now}, nil
}

// Write serializes v to <dir>/<timestamp>-<run>.json and returns the path.
// Colons in the timestamp are replaced so the name is portable.
func (w *Writer) Write(v any) (string, error) {
	data, err := w.Encode(v)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create report dir: %w", err)
	}

	stamp := strings.ReplaceAll(w.now().Format("2006-01-02T15:04:05.000000"), ":", "-")
	run := uuid.NewString()[:8]
	path := filepath.Join(w.dir, stamp+"-"+run+".json")

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("write report: %w", err)
	}
	return path, nil
}

// Encode renders v as indented JSON in the writer's key case.
func (w *Writer) Encode(v any) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("encode report: %w", err)
	}
	if w.keyCase == keycase.Camel {
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var raw any
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("re-decode report: %w", err)
		}
		if data, err = json.Marshal(keycase.ConvertKeys(raw, keycase.ToCamel)); err != nil {
			return nil, fmt.Errorf("encode report: %w", err)
		}
	}

	var out bytes.Buffer
	if err := json.Indent(&out, data, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}
