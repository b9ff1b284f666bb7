package storage

import (
	"context"
	"errors"
	"fmt"
	"os"

	"agewise-backend/models"
)

// Archive stores JSON snapshots of finished analysis reports, for audit and
// for reprocessing when scoring rules change.
type Archive interface {
	// Put stores a report snapshot and returns the archive key
	Put(ctx context.Context, report *models.AnalysisReport) (string, error)

	// Get retrieves a report snapshot by archive key
	Get(ctx context.Context, key string) (*models.AnalysisReport, error)

	// Delete removes a snapshot by archive key
	Delete(ctx context.Context, key string) error
}

// ArchiveType represents the archive backend type
type ArchiveType string

const (
	ArchiveTypeLocal ArchiveType = "local"
	ArchiveTypeS3    ArchiveType = "s3"
)

// ArchiveConfig holds configuration for the archive
type ArchiveConfig struct {
	Type         ArchiveType
	LocalPath    string // For local archive
	S3Bucket     string // For S3 archive
	S3Region     string // For S3 archive
	AWSAccessKey string
	AWSSecretKey string
}

// NewArchive creates an archive instance based on configuration
func NewArchive(cfg ArchiveConfig) (Archive, error) {
	switch cfg.Type {
	case ArchiveTypeLocal:
		return NewLocalArchive(cfg.LocalPath)
	case ArchiveTypeS3:
		return NewS3Archive(cfg)
	default:
		return nil, fmt.Errorf("unknown archive type: %s", cfg.Type)
	}
}

// NewArchiveFromEnv creates an archive instance from environment variables
func NewArchiveFromEnv() (Archive, error) {
	archiveType := os.Getenv("ARCHIVE_TYPE")
	if archiveType == "" {
		archiveType = "local" // Default to local for development
	}

	cfg := ArchiveConfig{
		Type: ArchiveType(archiveType),
	}

	switch ArchiveType(archiveType) {
	case ArchiveTypeLocal:
		localPath := os.Getenv("ARCHIVE_LOCAL_PATH")
		if localPath == "" {
			localPath = "./storage/reports"
		}
		cfg.LocalPath = localPath
		return NewLocalArchive(cfg.LocalPath)

	case ArchiveTypeS3:
		cfg.S3Bucket = os.Getenv("AWS_S3_BUCKET")
		cfg.S3Region = os.Getenv("AWS_REGION")
		if cfg.S3Region == "" {
			cfg.S3Region = "eu-west-2"
		}
		cfg.AWSAccessKey = os.Getenv("AWS_ACCESS_KEY_ID")
		cfg.AWSSecretKey = os.Getenv("AWS_SECRET_ACCESS_KEY")

		if cfg.S3Bucket == "" {
			return nil, errors.New("AWS_S3_BUCKET environment variable is required for S3 archive")
		}

		return NewS3Archive(cfg)

	default:
		return nil, fmt.Errorf("unknown archive type: %s", archiveType)
	}
}

// archiveKey generates the archive key for a report. Sharding by the first
// two ID characters keeps any single prefix from growing unbounded.
func archiveKey(report *models.AnalysisReport) string {
	id := report.ID.String()
	return fmt.Sprintf("%s/%s.json", id[:2], id)
}
