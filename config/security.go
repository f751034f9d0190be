package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Limits on config input to bound resource usage
const (
	maxConfigSize = 10 * 1024 * 1024 // 10MB
	maxJSONDepth  = 100
	maxEnvVarLen  = 10000
	maxPathLen    = 4096
)

// validateConfigPath checks a config file path for traversal and extension
func validateConfigPath(path string) error {
	if path == "" {
		return fmt.Errorf("config path is empty")
	}
	if len(path) > maxPathLen {
		return fmt.Errorf("config path too long: %d > %d", len(path), maxPathLen)
	}

	cleaned := filepath.Clean(path)
	if strings.Contains(cleaned, "..") {
		return fmt.Errorf("config path contains traversal: %q", path)
	}

	ext := strings.ToLower(filepath.Ext(cleaned))
	if ext != ".json" {
		return fmt.Errorf("config file must be .json, got %q", ext)
	}

	return nil
}

// safeReadFile reads a config file with path and size validation
func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("config path is not a regular file: %q", path)
	}
	if info.Size() > maxConfigSize {
		return nil, fmt.Errorf("config file too large: %d bytes > %d", info.Size(), maxConfigSize)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return data, nil
}

// validateEnvVar rejects oversized or malformed environment values
func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("%s too long: %d > %d", key, len(value), maxEnvVarLen)
	}
	if strings.ContainsRune(value, 0) {
		return fmt.Errorf("%s contains null byte", key)
	}
	return nil
}

// validateJSONDepth scans raw JSON and rejects nesting beyond maxJSONDepth.
// Brackets inside strings are ignored.
func validateJSONDepth(data []byte) error {
	depth := 0
	inString := false
	escaped := false

	for _, b := range data {
		if escaped {
			escaped = false
			continue
		}
		if inString {
			switch b {
			case '\\':
				escaped = true
			case '"':
				inString = false
			}
			continue
		}
		switch b {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > maxJSONDepth {
				return fmt.Errorf("JSON nesting exceeds maximum depth %d", maxJSONDepth)
			}
		case '}', ']':
			depth--
		}
	}
	return nil
}
