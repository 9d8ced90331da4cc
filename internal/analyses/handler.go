package analyses

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"veriglow-backend/internal/extract"
	"veriglow-backend/internal/factcheck"
	"veriglow-backend/internal/scraper"
	"veriglow-backend/internal/search"
	"veriglow-backend/internal/shared/server/middleware"
	"veriglow-backend/internal/shared/server/respond"
	"veriglow-backend/internal/shared/storage/object"
	"veriglow-backend/internal/shared/telemetry"
	"veriglow-backend/internal/usage"
)

const maxDocumentSize = 10 << 20 // 10MB

// Handler wires the analysis endpoints.
type Handler struct {
	Svc *Service
	// Objects keeps the original uploaded document for account holders.
	Objects object.ObjectStore
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// RegisterRoutes attaches analysis routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/analyze", h.analyze)
	rg.POST("/analyze/document", h.analyzeDocument)
	rg.GET("/history", middleware.RequireUser(), h.history)
	rg.POST("/history/review", middleware.RequireUser(), h.review)
	rg.GET("/stats", h.stats)
}

type analyzeRequest struct {
	Text     string `json:"text"`
	Language string `json:"language"`
}

type scorePair struct {
	Real float64 `json:"real"`
	Fake float64 `json:"fake"`
}

type analyzeResponse struct {
	AnalysisID   string            `json:"analysis_id"`
	Verdict      string            `json:"verdict"`
	Confidence   float64           `json:"confidence"`
	Scores       scorePair         `json:"scores"`
	Explanation  []string          `json:"explanation"`
	RedFlags     []string          `json:"red_flags"`
	FactCheck    *factcheck.Result `json:"fact_check,omitempty"`
	Sources      []search.Source   `json:"sources"`
	ModelVersion string            `json:"model_version"`
	Cached       bool              `json:"cached"`
	Translated   string            `json:"translated_text,omitempty"`
}

func toAnalyzeResponse(a Analysis) analyzeResponse {
	sources := a.Sources
	if sources == nil {
		sources = []search.Source{}
	}
	return analyzeResponse{
		AnalysisID:   a.ID,
		Verdict:      a.Verdict,
		Confidence:   a.Confidence,
		Scores:       scorePair{Real: a.ScoreReal, Fake: a.ScoreFake},
		Explanation:  a.Explanation,
		RedFlags:     a.RedFlags,
		FactCheck:    a.FactCheck,
		Sources:      sources,
		ModelVersion: a.ModelVersion,
		Cached:       a.Cached,
		Translated:   a.Translated,
	}
}

func (h *Handler) analyze(c *gin.Context) {
	var req analyzeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid request body", nil)
		return
	}
	h.runAnalysis(c, req.Text, req.Language)
}

func (h *Handler) analyzeDocument(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxDocumentSize)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var maxed *http.MaxBytesError
		if errors.As(err, &maxed) {
			respond.Error(c, http.StatusRequestEntityTooLarge, respond.CodeTooLarge, "document exceeds the 10MB limit", nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "file is required", nil)
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "unable to read file", nil)
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "unable to read file", nil)
		return
	}

	text, err := extract.ExtractTextFromBytes(c.Request.Context(), data, fileHeader.Header.Get("Content-Type"), fileHeader.Filename)
	if err != nil {
		respond.Error(c, http.StatusUnprocessableEntity, respond.CodeUnprocessable, "could not extract text from the document", nil)
		return
	}

	if h.Objects != nil && !middleware.IsGuest(c) {
		userID := middleware.UserIDFromContext(c)
		if _, _, _, err := h.Objects.Save(c.Request.Context(), userID, fileHeader.Filename, bytes.NewReader(data)); err != nil {
			telemetry.Warn("analyses.document_save_failed", map[string]any{"user_id": userID, "error": err.Error()})
		}
	}

	h.runAnalysis(c, text, "")
}

func (h *Handler) runAnalysis(c *gin.Context, text, language string) {
	req := AnalyzeRequest{
		Text:     text,
		Language: strings.TrimSpace(strings.ToLower(language)),
		UserID:   middleware.UserIDFromContext(c),
		Guest:    middleware.IsGuest(c),
		IP:       c.ClientIP(),
	}

	a, err := h.Svc.Analyze(c.Request.Context(), req)
	if err != nil {
		respondAnalyzeError(c, err)
		return
	}
	respond.OK(c, toAnalyzeResponse(a))
}

func respondAnalyzeError(c *gin.Context, err error) {
	var fetchErr *scraper.FetchError
	switch {
	case errors.Is(err, ErrTextTooShort):
		respond.Error(c, http.StatusBadRequest, respond.CodeBadRequest, ErrTextTooShort.Error(), nil)
	case errors.Is(err, scraper.ErrScheme):
		respond.Error(c, http.StatusBadRequest, respond.CodeBadRequest, "Invalid URL", nil)
	case errors.As(err, &fetchErr), errors.Is(err, scraper.ErrTooLarge), errors.Is(err, scraper.ErrThinContent):
		respond.Error(c, http.StatusUnprocessableEntity, respond.CodeUnprocessable,
			"Could not extract text from the provided URL. The site may be blocking automated access.", nil)
	case errors.Is(err, usage.ErrLimitReached):
		respond.Error(c, http.StatusTooManyRequests, respond.CodeRateLimited,
			"Monthly usage limit reached. Upgrade your plan for more analyses.", nil)
	case errors.Is(err, ErrModelUnavailable):
		respond.Error(c, http.StatusServiceUnavailable, respond.CodeUnavailable,
			"Analysis service is temporarily unavailable. Please try again.", nil)
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		respond.Error(c, http.StatusRequestTimeout, respond.CodeTimeout, "request canceled", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to analyze text", nil)
	}
}

func (h *Handler) history(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)

	limit := intQuery(c, "limit", 20)
	skip := intQuery(c, "skip", 0)

	items, total, err := h.Svc.History(c.Request.Context(), userID, limit, skip)
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to fetch history", nil)
		return
	}
	if items == nil {
		items = []Analysis{}
	}
	respond.OK(c, gin.H{"items": items, "total": total})
}

type reviewRequest struct {
	HistoryID string `json:"history_id"`
	Correct   *bool  `json:"correct"`
}

func (h *Handler) review(c *gin.Context) {
	var req reviewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeValidation, "invalid request body", nil)
		return
	}
	req.HistoryID = strings.TrimSpace(req.HistoryID)
	if req.HistoryID == "" || req.Correct == nil {
		respond.Error(c, http.StatusBadRequest, respond.CodeBadRequest, "Invalid history_id", nil)
		return
	}

	userID := middleware.UserIDFromContext(c)
	err := h.Svc.Review(c.Request.Context(), userID, req.HistoryID, *req.Correct, c.ClientIP())
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			respond.Error(c, http.StatusNotFound, respond.CodeNotFound, "Not found", nil)
			return
		}
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to record review", nil)
		return
	}
	respond.OK(c, gin.H{"status": "ok"})
}

func (h *Handler) stats(c *gin.Context) {
	st, err := h.Svc.Stats(c.Request.Context())
	if err != nil {
		respond.Error(c, http.StatusInternalServerError, respond.CodeInternal, "failed to fetch stats", nil)
		return
	}
	respond.OK(c, st)
}

func intQuery(c *gin.Context, name string, fallback int) int {
	raw := c.Query(name)
	if raw == "" {
		return fallback
	}
	val, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return val
}
