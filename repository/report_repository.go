package repository

import (
	"context"
	"fmt"

	"agewise-backend/models"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ReportRepository handles database operations for analysis reports
type ReportRepository struct {
	db *pgxpool.Pool
}

// NewReportRepository creates a new report repository
func NewReportRepository(db *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{db: db}
}

// Create persists a finished analysis report. The caller assigns the ID so
// the report keeps one identity across the database and the archive.
func (r *ReportRepository) Create(ctx context.Context, report *models.AnalysisReport) error {
	if report.ID == uuid.Nil {
		report.ID = uuid.New()
	}

	query := `
		INSERT INTO analysis_reports (
			id, source_url, title, price_pounds, location,
			overall_score, narrative, categories
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8
		) RETURNING created_at`

	err := r.db.QueryRow(
		ctx, query,
		report.ID,
		report.SourceURL,
		report.Title,
		report.PricePounds,
		report.Location,
		report.OverallScore,
		report.Narrative,
		report.Categories,
	).Scan(&report.CreatedAt)

	return err
}

// GetByID retrieves a report by ID
func (r *ReportRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.AnalysisReport, error) {
	report := &models.AnalysisReport{}
	query := `
		SELECT id, source_url, title, price_pounds, location,
			overall_score, narrative, categories, created_at
		FROM analysis_reports
		WHERE id = $1`

	err := r.db.QueryRow(ctx, query, id).Scan(
		&report.ID,
		&report.SourceURL,
		&report.Title,
		&report.PricePounds,
		&report.Location,
		&report.OverallScore,
		&report.Narrative,
		&report.Categories,
		&report.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	return report, nil
}

// GetLatestByURL retrieves the most recent report for a listing URL, if any
func (r *ReportRepository) GetLatestByURL(ctx context.Context, sourceURL string) (*models.AnalysisReport, error) {
	report := &models.AnalysisReport{}
	query := `
		SELECT id, source_url, title, price_pounds, location,
			overall_score, narrative, categories, created_at
		FROM analysis_reports
		WHERE source_url = $1
		ORDER BY created_at DESC
		LIMIT 1`

	err := r.db.QueryRow(ctx, query, sourceURL).Scan(
		&report.ID,
		&report.SourceURL,
		&report.Title,
		&report.PricePounds,
		&report.Location,
		&report.OverallScore,
		&report.Narrative,
		&report.Categories,
		&report.CreatedAt,
	)

	if err != nil {
		return nil, err
	}

	return report, nil
}

// ListRecent retrieves recent reports, newest first
func (r *ReportRepository) ListRecent(ctx context.Context, limit, offset int) ([]*models.AnalysisReport, error) {
	query := `
		SELECT id, source_url, title, price_pounds, location,
			overall_score, narrative, categories, created_at
		FROM analysis_reports
		ORDER BY created_at DESC`

	args := []interface{}{}
	argIndex := 1

	if limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIndex)
		args = append(args, limit)
		argIndex++
		if offset > 0 {
			query += fmt.Sprintf(" OFFSET $%d", argIndex)
			args = append(args, offset)
		}
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var reports []*models.AnalysisReport
	for rows.Next() {
		report := &models.AnalysisReport{}
		err := rows.Scan(
			&report.ID,
			&report.SourceURL,
			&report.Title,
			&report.PricePounds,
			&report.Location,
			&report.OverallScore,
			&report.Narrative,
			&report.Categories,
			&report.CreatedAt,
		)
		if err != nil {
			return nil, err
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// Delete deletes a report
func (r *ReportRepository) Delete(ctx context.Context, id uuid.UUID) error {
	query := `DELETE FROM analysis_reports WHERE id = $1`
	_, err := r.db.Exec(ctx, query, id)
	return err
}
