package utils

import (
	"os"
	"strings"
)

// GetEnv returns the value of key, or fallback when it is unset or empty.
func GetEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok && strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

// CreateFolder creates path and any missing parents.
func CreateFolder(path string) error {
	return os.MkdirAll(path, 0o755)
}
