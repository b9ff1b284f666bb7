package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"agewise-backend/models"
)

// LocalArchive implements Archive on the local filesystem
type LocalArchive struct {
	basePath string
}

// NewLocalArchive creates a new local archive instance
func NewLocalArchive(basePath string) (*LocalArchive, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create archive directory: %w", err)
	}

	return &LocalArchive{
		basePath: basePath,
	}, nil
}

// Put stores a report snapshot locally
func (a *LocalArchive) Put(ctx context.Context, report *models.AnalysisReport) (string, error) {
	key := archiveKey(report)
	fullPath := filepath.Join(a.basePath, key)

	if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}

	if err := os.WriteFile(fullPath, data, 0644); err != nil {
		os.Remove(fullPath) // Clean up on error
		return "", fmt.Errorf("failed to write snapshot: %w", err)
	}

	return key, nil
}

// Get retrieves a report snapshot from the local archive
func (a *LocalArchive) Get(ctx context.Context, key string) (*models.AnalysisReport, error) {
	fullPath := filepath.Join(a.basePath, key)

	data, err := os.ReadFile(fullPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("snapshot not found: %s", key)
		}
		return nil, fmt.Errorf("failed to read snapshot: %w", err)
	}

	report := &models.AnalysisReport{}
	if err := json.Unmarshal(data, report); err != nil {
		return nil, fmt.Errorf("failed to decode snapshot: %w", err)
	}

	return report, nil
}

// Delete removes a snapshot from the local archive
func (a *LocalArchive) Delete(ctx context.Context, key string) error {
	fullPath := filepath.Join(a.basePath, key)

	err := os.Remove(fullPath)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}

	return nil
}
