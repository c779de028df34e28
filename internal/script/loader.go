package script

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Format is the serialisation of a script asset.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

var (
	// ErrUnsupportedFormat is returned for assets whose extension is neither
	// JSON nor YAML.
	ErrUnsupportedFormat = errors.New("script: unsupported format")

	// ErrDuplicateStep is returned when two steps share an id.
	ErrDuplicateStep = errors.New("script: duplicate step id")
)

// FormatFromPath infers the asset format from the file extension.
func FormatFromPath(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON, nil
	case ".yaml", ".yml":
		return FormatYAML, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedFormat, path)
}

// LoadFile reads, decodes and validates the script asset at path. Lint
// problems are logged as warnings but do not fail the load.
func LoadFile(path string) (*Script, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("script: open %q: %w", path, err)
	}
	defer f.Close()

	s, err := Decode(f, format)
	if err != nil {
		return nil, fmt.Errorf("script: parse %q: %w", path, err)
	}
	return s, nil
}

// Decode reads one script from r in the given format and validates it.
// The reader is consumed entirely; the caller is responsible for closing it.
func Decode(r io.Reader, format Format) (*Script, error) {
	s := &Script{}
	switch format {
	case FormatJSON:
		dec := json.NewDecoder(r)
		dec.DisallowUnknownFields()
		if err := dec.Decode(s); err != nil {
			return nil, fmt.Errorf("script: decode json: %w", err)
		}
	case FormatYAML:
		dec := yaml.NewDecoder(r)
		dec.KnownFields(true)
		if err := dec.Decode(s); err != nil {
			return nil, fmt.Errorf("script: decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedFormat, format)
	}

	if err := Validate(s); err != nil {
		return nil, err
	}
	for _, p := range Lint(s) {
		slog.Warn("script: authoring problem", "script", s.ID, "step", p.StepID, "problem", p.Message)
	}
	return s, nil
}

// Validate checks the structural rules the player depends on: at least one
// step, and every step id present and unique. It returns a joined error
// listing all failures.
func Validate(s *Script) error {
	if s == nil {
		return errors.New("script: script must not be nil")
	}
	var errs []error
	if len(s.Steps) == 0 {
		errs = append(errs, fmt.Errorf("script %q: at least one step is required", s.ID))
	}
	seen := make(map[string]int, len(s.Steps))
	for i, st := range s.Steps {
		if st.ID == "" {
			errs = append(errs, fmt.Errorf("script %q: steps[%d].id is required", s.ID, i))
			continue
		}
		if prev, ok := seen[st.ID]; ok {
			errs = append(errs, fmt.Errorf("%w: steps[%d] %q duplicates steps[%d]", ErrDuplicateStep, i, st.ID, prev))
			continue
		}
		seen[st.ID] = i
	}
	return errors.Join(errs...)
}
