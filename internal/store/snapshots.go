package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// SnapshotName identifies a cycle output for the debug cache.
type SnapshotName string

const (
	SnapshotProps     SnapshotName = "props"
	SnapshotSentiment SnapshotName = "sentiment"
	SnapshotTailing   SnapshotName = "tailing"
	SnapshotQuality   SnapshotName = "quality"
)

// generateFilename creates a timestamped filename with the given extension.
func generateFilename(at time.Time, ext string) string {
	return at.UTC().Format("2006-01-02T15-04-05.000") + ext
}

// SaveSnapshot writes data as indented JSON under dir/name.
// Returns the path to the saved file.
func SaveSnapshot[T any](dir string, name SnapshotName, at time.Time, data T) (string, error) {
	stepDir := filepath.Join(dir, string(name))
	if err := os.MkdirAll(stepDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create snapshot dir: %w", err)
	}

	jsonData, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	path := filepath.Join(stepDir, generateFilename(at, ".json"))
	if err := os.WriteFile(path, jsonData, 0644); err != nil {
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	return path, nil
}

// LatestSnapshot loads the most recent snapshot for name.
// Returns the data, the filepath it was loaded from, and any error.
func LatestSnapshot[T any](dir string, name SnapshotName) (T, string, error) {
	var zero T

	stepDir := filepath.Join(dir, string(name))
	entries, err := os.ReadDir(stepDir)
	if err != nil {
		if os.IsNotExist(err) {
			return zero, "", fmt.Errorf("no snapshot for %s", name)
		}
		return zero, "", err
	}

	// os.ReadDir sorts by name, which is chronological for our timestamps
	latest := ""
	for _, entry := range entries {
		if !entry.IsDir() {
			latest = entry.Name()
		}
	}
	if latest == "" {
		return zero, "", fmt.Errorf("no snapshot for %s", name)
	}

	path := filepath.Join(stepDir, latest)
	raw, err := os.ReadFile(path)
	if err != nil {
		return zero, "", fmt.Errorf("failed to read snapshot: %w", err)
	}

	var data T
	if err := json.Unmarshal(raw, &data); err != nil {
		return zero, "", fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return data, path, nil
}
