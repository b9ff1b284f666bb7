package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"agewise-backend/aggregate"
	"agewise-backend/cache"
	"agewise-backend/cost"
	"agewise-backend/epc"
	"agewise-backend/features"
	"agewise-backend/models"
	"agewise-backend/monitoring"
	"agewise-backend/proximity"
	"agewise-backend/repository"
	"agewise-backend/rooms"
	"agewise-backend/scraper"
	"agewise-backend/storage"
)

var (
	// ErrInvalidURL means the submitted URL is not a listing we can analyse
	ErrInvalidURL = errors.New("invalid listing URL")

	// ErrListingUnavailable means the listing page could not be fetched or
	// parsed; without listing content no analysis is possible
	ErrListingUnavailable = errors.New("listing unavailable")

	// ErrInvalidReportID means the report ID is not a valid UUID
	ErrInvalidReportID = errors.New("invalid report id")

	// ErrAnalysisDeadline means the overall deadline expired mid-analysis.
	// Sub-analyses degrade individually, but an expired deadline means their
	// fallbacks were forced rather than earned, so no report is returned.
	ErrAnalysisDeadline = errors.New("analysis deadline exceeded")
)

// AnalysisService runs the full suitability analysis for a listing URL
type AnalysisService struct {
	scraper    *scraper.Scraper
	epcs       *epc.Resolver
	detector   *features.Detector
	proximity  *proximity.Scorer
	reportRepo *repository.ReportRepository
	archive    storage.Archive
	cache      *cache.ReportCache
	logger     *zap.Logger
	metrics    *monitoring.Metrics
	timeout    time.Duration
}

// AnalysisServiceOption is a functional option for AnalysisService
type AnalysisServiceOption func(*AnalysisService)

// WithScraper sets the listing scraper
func WithScraper(s *scraper.Scraper) AnalysisServiceOption {
	return func(svc *AnalysisService) {
		svc.scraper = s
	}
}

// WithEPCResolver sets the energy rating resolver
func WithEPCResolver(r *epc.Resolver) AnalysisServiceOption {
	return func(svc *AnalysisService) {
		svc.epcs = r
	}
}

// WithFeatureDetector sets the accessible feature detector
func WithFeatureDetector(d *features.Detector) AnalysisServiceOption {
	return func(svc *AnalysisService) {
		svc.detector = d
	}
}

// WithProximityScorer sets the walking proximity scorer
func WithProximityScorer(p *proximity.Scorer) AnalysisServiceOption {
	return func(svc *AnalysisService) {
		svc.proximity = p
	}
}

// WithReportRepository sets the report repository
func WithReportRepository(repo *repository.ReportRepository) AnalysisServiceOption {
	return func(svc *AnalysisService) {
		svc.reportRepo = repo
	}
}

// WithArchive sets the report archive
func WithArchive(a storage.Archive) AnalysisServiceOption {
	return func(svc *AnalysisService) {
		svc.archive = a
	}
}

// WithCache sets the report cache
func WithCache(c *cache.ReportCache) AnalysisServiceOption {
	return func(svc *AnalysisService) {
		svc.cache = c
	}
}

// WithLogger sets the logger
func WithLogger(l *zap.Logger) AnalysisServiceOption {
	return func(svc *AnalysisService) {
		svc.logger = l
	}
}

// WithMetrics sets the metrics collector
func WithMetrics(m *monitoring.Metrics) AnalysisServiceOption {
	return func(svc *AnalysisService) {
		svc.metrics = m
	}
}

// WithTimeout sets the overall deadline for one analysis
func WithTimeout(d time.Duration) AnalysisServiceOption {
	return func(svc *AnalysisService) {
		svc.timeout = d
	}
}

// NewAnalysisService creates a new analysis service
func NewAnalysisService(opts ...AnalysisServiceOption) *AnalysisService {
	svc := &AnalysisService{
		logger:  zap.NewNop(),
		timeout: 45 * time.Second,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

// AnalyzeResult is the outcome of one analysis
type AnalyzeResult struct {
	Report *models.AnalysisReport
	Cached bool
}

// Analyze runs the full pipeline for a listing URL. The scrape is the only
// fatal step: every downstream sub-analysis degrades to a null category on
// failure, and aggregation fails only when all of them do.
func (s *AnalysisService) Analyze(ctx context.Context, listingURL string) (*AnalyzeResult, error) {
	if s.scraper == nil {
		return nil, errors.New("scraper not set")
	}

	if err := s.scraper.ValidateURL(listingURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidURL, err)
	}

	if cached, err := s.cache.Get(ctx, listingURL); err == nil {
		s.logger.Info("serving cached analysis", zap.String("url", listingURL))
		return &AnalyzeResult{Report: cached, Cached: true}, nil
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	started := time.Now()

	listing, err := s.scraper.Fetch(ctx, listingURL)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrListingUnavailable, err)
	}

	cats := s.runSubAnalyses(ctx, listing)

	// A sub-analysis failing on its own degrades to a null category. The
	// outer deadline expiring is different: every remaining call was cut
	// short at once, so the categories reflect the timeout, not the listing.
	if ctx.Err() != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisDeadline, ctx.Err())
	}

	composite, err := aggregate.Compose(listing.Title, cats)
	if err != nil {
		return nil, err
	}

	report := &models.AnalysisReport{
		ID:           uuid.New(),
		SourceURL:    listingURL,
		Title:        listing.Title,
		PricePounds:  listing.PricePounds,
		Location:     listing.Location,
		OverallScore: composite.Overall,
		Narrative:    composite.Narrative,
		Categories:   composite.Categories,
		CreatedAt:    time.Now().UTC(),
	}

	s.persist(ctx, report)
	s.cache.Set(ctx, report)

	if s.metrics != nil {
		s.metrics.ObserveAnalysis(time.Since(started))
	}

	return &AnalyzeResult{Report: report}, nil
}

// runSubAnalyses fans the independent sub-analyses out in parallel. Rooms
// and cost run together on one goroutine because cost pricing needs the
// floor area rooms extracts.
func (s *AnalysisService) runSubAnalyses(ctx context.Context, listing *models.PropertyListing) aggregate.Categories {
	var cats aggregate.Categories

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if s.epcs != nil {
			cats.EPC = s.epcs.Resolve(gctx, listing)
		}
		return nil
	})

	g.Go(func() error {
		if s.detector != nil {
			cats.Features = s.detector.Detect(gctx, listing)
		}
		return nil
	})

	g.Go(func() error {
		if s.proximity != nil {
			cats.GP = s.proximity.Score(gctx, listing, models.ServiceGP)
		}
		return nil
	})

	g.Go(func() error {
		if s.proximity != nil {
			bus := s.proximity.Score(gctx, listing, models.ServiceBus)
			train := s.proximity.Score(gctx, listing, models.ServiceTrain)
			cats.Transport = aggregate.Summarize(bus, train)
		}
		return nil
	})

	g.Go(func() error {
		cats.Rooms = rooms.Analyze(listing)
		var area *float64
		if cats.Rooms != nil {
			area = cats.Rooms.FloorAreaSqm
		}
		cats.Cost = cost.Analyze(listing, area)
		return nil
	})

	// Sub-tasks never return errors; they degrade to nil categories.
	g.Wait()

	return cats
}

// persist writes the report to the database and the archive. Both are
// best-effort and independent: the report ID is assigned before either runs,
// so the archive still gets a stable key when the database is absent.
func (s *AnalysisService) persist(ctx context.Context, report *models.AnalysisReport) {
	if s.reportRepo != nil {
		if err := s.reportRepo.Create(ctx, report); err != nil {
			s.logger.Error("failed to persist report", zap.String("url", report.SourceURL), zap.Error(err))
		}
	}
	if s.archive != nil {
		if key, err := s.archive.Put(ctx, report); err != nil {
			s.logger.Error("failed to archive report", zap.String("url", report.SourceURL), zap.Error(err))
		} else {
			s.logger.Debug("archived report", zap.String("key", key))
		}
	}
}

// GetReport retrieves a persisted report by ID
func (s *AnalysisService) GetReport(ctx context.Context, id string) (*models.AnalysisReport, error) {
	if s.reportRepo == nil {
		return nil, errors.New("report repository not set")
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidReportID, err)
	}
	return s.reportRepo.GetByID(ctx, parsed)
}

// ListReports retrieves recent reports
func (s *AnalysisService) ListReports(ctx context.Context, limit, offset int) ([]*models.AnalysisReport, error) {
	if s.reportRepo == nil {
		return nil, errors.New("report repository not set")
	}
	return s.reportRepo.ListRecent(ctx, limit, offset)
}
