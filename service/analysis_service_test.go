package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"agewise-backend/config"
	"agewise-backend/geo"
	"agewise-backend/proximity"
	"agewise-backend/scraper"
	"agewise-backend/storage"
)

const testListingHTML = `<html><head>
<meta property="og:title" content="2 bedroom bungalow for sale in Acacia Road, Sheffield" />
<meta property="place:location:latitude" content="53.38" />
<meta property="place:location:longitude" content="-1.47" />
</head><body>
<h1>2 bedroom bungalow for sale in Acacia Road, Sheffield</h1>
<p>A well presented two bedroom bungalow, all on one level, with a private
driveway and rear garden. Guide price £265,000. Council tax band: C.</p>
</body></html>`

// stalledPlaces never answers until the context is cancelled, standing in
// for a provider that outlives the request deadline.
type stalledPlaces struct{}

func (stalledPlaces) NearbySearch(ctx context.Context, lat, lng float64, categories []string, radiusMeters int) ([]geo.Place, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func newListingServer(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, testListingHTML)
	}))
	t.Cleanup(srv.Close)
	return srv.URL + "/properties/12345"
}

func loadTestRules(t *testing.T) *config.Rules {
	t.Helper()
	rules, err := config.LoadRules("")
	if err != nil {
		t.Fatalf("load rules: %v", err)
	}
	return rules
}

func TestAnalyzeFailsWhenDeadlineExpires(t *testing.T) {
	listingURL := newListingServer(t)
	rules := loadTestRules(t)

	svc := NewAnalysisService(
		WithScraper(scraper.New("127.0.0.1", 5*time.Second, rules, zap.NewNop(), nil)),
		WithProximityScorer(proximity.NewScorer(stalledPlaces{}, nil, nil, rules, zap.NewNop())),
		WithTimeout(150*time.Millisecond),
	)

	res, err := svc.Analyze(context.Background(), listingURL)
	if !errors.Is(err, ErrAnalysisDeadline) {
		t.Fatalf("expired deadline must fail the request, got res=%+v err=%v", res, err)
	}
	if res != nil {
		t.Fatalf("no report may be returned after the deadline, got %+v", res.Report)
	}
}

func TestAnalyzeSucceedsWithDegradedComponents(t *testing.T) {
	listingURL := newListingServer(t)
	rules := loadTestRules(t)

	// No resolver, detector, proximity, repository or cache configured:
	// rooms and cost alone carry the aggregate.
	svc := NewAnalysisService(
		WithScraper(scraper.New("127.0.0.1", 5*time.Second, rules, zap.NewNop(), nil)),
	)

	res, err := svc.Analyze(context.Background(), listingURL)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}
	if res.Report.OverallScore <= 0 {
		t.Fatalf("expected a scored report, got %+v", res.Report)
	}
	if res.Report.ID == uuid.Nil {
		t.Fatalf("report must carry an id even without a database")
	}
}

func TestAnalyzeArchivesWithoutDatabase(t *testing.T) {
	listingURL := newListingServer(t)
	rules := loadTestRules(t)

	dir := t.TempDir()
	archive, err := storage.NewArchive(storage.ArchiveConfig{Type: storage.ArchiveTypeLocal, LocalPath: dir})
	if err != nil {
		t.Fatalf("new archive: %v", err)
	}

	svc := NewAnalysisService(
		WithScraper(scraper.New("127.0.0.1", 5*time.Second, rules, zap.NewNop(), nil)),
		WithArchive(archive),
	)

	res, err := svc.Analyze(context.Background(), listingURL)
	if err != nil {
		t.Fatalf("analyze: %v", err)
	}

	var archived []string
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, walkErr error) error {
		if walkErr == nil && !d.IsDir() && strings.HasSuffix(path, ".json") {
			archived = append(archived, path)
		}
		return nil
	})
	if len(archived) != 1 {
		t.Fatalf("expected one archived report, found %v", archived)
	}
	if !strings.Contains(archived[0], res.Report.ID.String()) {
		t.Fatalf("archive key %s should embed report id %s", archived[0], res.Report.ID)
	}
}
