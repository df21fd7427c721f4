package datasource

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/goccy/go-json"
	"github.com/goccy/go-yaml"

	"github.com/karupanerura/series-formula/internal/types"
)

// ParseYAML reads a document of named series and variables.
func ParseYAML(r io.Reader) (*types.SymbolTable, error) {
	yamlBytes, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("io.ReadAll: %w", err)
	}

	jsonBytes, err := yaml.YAMLToJSON(yamlBytes)
	if err != nil {
		return nil, fmt.Errorf("yaml.YAMLToJSON: %w", err)
	}

	return ParseJSON(bytes.NewReader(jsonBytes))
}

func ParseJSON(r io.Reader) (*types.SymbolTable, error) {
	decoder := json.NewDecoder(r)
	decoder.UseNumber()

	var root map[string]any
	if err := decoder.Decode(&root); err != nil {
		return nil, fmt.Errorf("json.Decode: %w", err)
	}

	return Decode(root)
}

// ParseFile picks the format by extension: .json, or YAML otherwise.
func ParseFile(path string) (*types.SymbolTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("os.Open: %w", err)
	}
	defer f.Close()

	if strings.EqualFold(filepath.Ext(path), ".json") {
		return ParseJSON(f)
	}
	return ParseYAML(f)
}
