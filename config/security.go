package config

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Limits applied to anything read from disk or the environment.
const (
	maxConfigSize = 1 << 20 // 1MB
	maxJSONDepth  = 32
	maxEnvVarLen  = 1024
	maxPathLen    = 4096
)

var (
	errUnsafePath        = stderrors.New("unsafe config path")
	errUnsupportedFormat = stderrors.New("unsupported config format")
)

// format is the on-disk encoding of a configuration file.
type format int

const (
	formatJSON format = iota + 1
	formatYAML
)

func (f format) String() string {
	if f == formatYAML {
		return "YAML"
	}
	return "JSON"
}

// formatOf picks the encoding from the file extension.
func formatOf(path string) (format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return formatJSON, nil
	case ".yaml", ".yml":
		return formatYAML, nil
	}
	return 0, fmt.Errorf("%w: %s (want .json, .yaml or .yml)", errUnsupportedFormat, path)
}

func (f format) decode(data []byte) (map[string]any, error) {
	var raw map[string]any
	if f == formatYAML {
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, fmt.Errorf("invalid YAML: %w", err)
		}
		return raw, nil
	}

	if err := checkJSONDepth(data); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return raw, nil
}

func (f format) encode(c *Config) ([]byte, error) {
	if f == formatYAML {
		return yaml.Marshal(c)
	}
	return json.MarshalIndent(c, "", "  ")
}

// checkPath rejects empty, oversized and escaping paths and returns the
// file's format. Relative paths must stay below the working directory.
func checkPath(path string) (format, error) {
	switch {
	case path == "":
		return 0, fmt.Errorf("%w: empty", errUnsafePath)
	case len(path) > maxPathLen:
		return 0, fmt.Errorf("%w: %d bytes > %d", errUnsafePath, len(path), maxPathLen)
	case !filepath.IsAbs(path) && !filepath.IsLocal(path):
		return 0, fmt.Errorf("%w: %s escapes the working directory", errUnsafePath, path)
	}
	return formatOf(path)
}

// readConfigFile reads a regular file of at most maxConfigSize bytes.
func readConfigFile(path string) ([]byte, format, error) {
	f, err := checkPath(path)
	if err != nil {
		return nil, 0, err
	}

	file, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, 0, err
	}
	if !info.Mode().IsRegular() {
		return nil, 0, fmt.Errorf("%w: %s is not a regular file", errUnsafePath, path)
	}

	data, err := io.ReadAll(io.LimitReader(file, maxConfigSize+1))
	if err != nil {
		return nil, 0, err
	}
	if len(data) > maxConfigSize {
		return nil, 0, fmt.Errorf("config file larger than %d bytes: %s", maxConfigSize, path)
	}
	return data, f, nil
}

// writeConfigFile writes data readable by the owner only.
func writeConfigFile(path string, data []byte) error {
	if _, err := checkPath(path); err != nil {
		return err
	}
	if len(data) > maxConfigSize {
		return fmt.Errorf("config larger than %d bytes", maxConfigSize)
	}
	return os.WriteFile(path, data, 0600)
}

func checkEnvValue(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("%s too long: %d > %d", key, len(value), maxEnvVarLen)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("null byte in %s", key)
	}
	return nil
}

// checkJSONDepth walks the token stream and fails once nesting exceeds maxJSONDepth.
func checkJSONDepth(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth := 0
	for {
		tok, err := dec.Token()
		if stderrors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("invalid JSON: %w", err)
		}

		switch tok {
		case json.Delim('{'), json.Delim('['):
			depth++
			if depth > maxJSONDepth {
				return fmt.Errorf("JSON nesting deeper than %d", maxJSONDepth)
			}
		case json.Delim('}'), json.Delim(']'):
			depth--
		}
	}
}
