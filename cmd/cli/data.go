package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// loadData reads a field map from a YAML or JSON file ("-" is stdin) and
// applies key=value overrides on top
func loadData(path string, sets []string) (map[string]any, error) {
	data := map[string]any{}

	if path != "" {
		raw, err := readInput(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read data: %w", err)
		}
		if err := yaml.Unmarshal(raw, &data); err != nil {
			return nil, fmt.Errorf("failed to parse data: %w", err)
		}
		if data == nil {
			data = map[string]any{}
		}
	}

	for _, kv := range sets {
		key, value, ok := strings.Cut(kv, "=")
		key = strings.TrimSpace(key)
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --set %q, expected key=value", kv)
		}
		data[key] = value
	}
	return data, nil
}

func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(filepath.Clean(path))
}

// writeOutput writes to path, or to w when path is empty or "-"
func writeOutput(w io.Writer, path string, data []byte) error {
	if path == "" || path == "-" {
		_, err := w.Write(data)
		return err
	}
	return os.WriteFile(path, data, 0644)
}
