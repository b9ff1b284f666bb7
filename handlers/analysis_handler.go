package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"agewise-backend/models"
	"agewise-backend/service"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"
)

// AnalysisHandler handles HTTP requests for listing analyses
type AnalysisHandler struct {
	analysisService *service.AnalysisService
	logger          *zap.Logger
}

// NewAnalysisHandler creates a new analysis handler
func NewAnalysisHandler(analysisService *service.AnalysisService, logger *zap.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		analysisService: analysisService,
		logger:          logger,
	}
}

// AnalyzeRequest represents the request body for an analysis
type AnalyzeRequest struct {
	URL string `json:"url" binding:"required"`
}

// Analyze handles POST /api/analyze and GET /api/analyze?url=
func (h *AnalysisHandler) Analyze(c *gin.Context) {
	var listingURL string
	if c.Request.Method == http.MethodGet {
		listingURL = c.Query("url")
		if listingURL == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url query parameter is required"})
			return
		}
	} else {
		var req AnalyzeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "url field is required"})
			return
		}
		listingURL = req.URL
	}

	result, err := h.analysisService.Analyze(c.Request.Context(), listingURL)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, service.ErrInvalidURL) {
			status = http.StatusBadRequest
		}
		h.logger.Warn("analysis failed", zap.String("url", listingURL), zap.Error(err))
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, analysisResponse(result.Report, result.Cached))
}

// GetReport handles GET /api/reports/:id
func (h *AnalysisHandler) GetReport(c *gin.Context) {
	report, err := h.analysisService.GetReport(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, service.ErrInvalidReportID) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		if errors.Is(err, pgx.ErrNoRows) {
			c.JSON(http.StatusNotFound, gin.H{"error": "report not found"})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, analysisResponse(report, false))
}

// ListReports handles GET /api/reports
func (h *AnalysisHandler) ListReports(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	if offset < 0 {
		offset = 0
	}

	reports, err := h.analysisService.ListReports(c.Request.Context(), limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	summaries := make([]gin.H, 0, len(reports))
	for _, r := range reports {
		summaries = append(summaries, gin.H{
			"id":            r.ID,
			"url":           r.SourceURL,
			"title":         r.Title,
			"overall_score": r.OverallScore,
			"rating":        models.RatingForScore(r.OverallScore),
			"created_at":    r.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{"reports": summaries, "count": len(summaries)})
}

// Health handles GET /health
func (h *AnalysisHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

func analysisResponse(report *models.AnalysisReport, cached bool) gin.H {
	return gin.H{
		"property": gin.H{
			"title":    report.Title,
			"price":    report.PricePounds,
			"location": report.Location,
			"url":      report.SourceURL,
		},
		"analysis": gin.H{
			"id":            report.ID,
			"overall_score": report.OverallScore,
			"rating":        models.RatingForScore(report.OverallScore),
			"categories":    report.Categories,
			"narrative":     report.Narrative,
			"cached":        cached,
		},
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
}
