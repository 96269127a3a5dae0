// Package ragservice exposes the local RAG pipeline over HTTP so that
// proxy-mode MCP servers can share one corpus and model key.
package ragservice

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/HendryAvila/qa-mcp/internal/apperr"
	"github.com/HendryAvila/qa-mcp/internal/logging"
	"github.com/HendryAvila/qa-mcp/internal/rag"
)

// Ingester runs ticket ingestion.
type Ingester interface {
	Ingest(ctx context.Context, source, query string, maxItems int) (*rag.IngestResult, error)
}

// StatsProvider reports corpus statistics.
type StatsProvider interface {
	Stats(ctx context.Context) (rag.Stats, error)
}

// Config wires the router. Ingester and Stats are optional; without them
// /ingest answers 503 and /healthz omits the record count.
type Config struct {
	Generator   rag.Generator
	Ingester    Ingester
	Stats       StatsProvider
	ServiceName string
	// Tracing enables the otelgin middleware.
	Tracing bool
}

// IngestRequest is the POST /ingest body.
type IngestRequest struct {
	Source   string `json:"source" binding:"required"`
	Query    string `json:"query"`
	MaxItems *int   `json:"max_items"`
}

// Health is the GET /healthz body.
type Health struct {
	Status  string `json:"status"`
	Records *int   `json:"records,omitempty"`
}

// DefaultIngestItems is used when a request omits max_items.
const DefaultIngestItems = 20

type handler struct {
	cfg Config
}

// NewRouter builds the gin engine serving the RAG API.
func NewRouter(cfg Config) *gin.Engine {
	router := gin.New()

	if cfg.Tracing {
		router.Use(otelgin.Middleware(cfg.ServiceName))
	}
	router.Use(recovery())
	router.Use(requestLogger())

	h := &handler{cfg: cfg}
	router.GET("/healthz", h.health)
	router.GET("/generate-bdd-for-features", h.generateForFeatures)
	router.GET("/generate-bdd-for-ticket", h.generateForTicket)
	router.POST("/ingest", h.ingest)

	return router
}

func (h *handler) generateForFeatures(c *gin.Context) {
	out, err := h.cfg.Generator.GenerateForFeatures(c.Request.Context(), c.Query("description"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) generateForTicket(c *gin.Context) {
	out, err := h.cfg.Generator.GenerateForTicket(c.Request.Context(), c.Query("ticket_id"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *handler) ingest(c *gin.Context) {
	if h.cfg.Ingester == nil {
		writeError(c, apperr.New(apperr.NotReady, "ingestion is not enabled on this service"))
		return
	}

	var req IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, apperr.Wrap(apperr.InvalidInput, err, "invalid request body"))
		return
	}
	// Only an absent max_items takes the default; an explicit 0 is rejected
	// by the ingester.
	maxItems := DefaultIngestItems
	if req.MaxItems != nil {
		maxItems = *req.MaxItems
	}

	res, err := h.cfg.Ingester.Ingest(c.Request.Context(), req.Source, req.Query, maxItems)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *handler) health(c *gin.Context) {
	if h.cfg.Stats == nil {
		c.JSON(http.StatusOK, Health{Status: "ok"})
		return
	}
	st, err := h.cfg.Stats.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, Health{Status: "unavailable"})
		return
	}
	c.JSON(http.StatusOK, Health{Status: "ok", Records: &st.Records})
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.InvalidInput, apperr.EmptyInput, apperr.MalformedQuery:
		return http.StatusBadRequest
	case apperr.TicketNotFound:
		return http.StatusNotFound
	case apperr.NotReady:
		return http.StatusServiceUnavailable
	case apperr.UpstreamUnavailable:
		return http.StatusBadGateway
	case apperr.Cancelled:
		return 499
	}
	return http.StatusInternalServerError
}

func writeError(c *gin.Context, err error) {
	te := apperr.ToToolError(err)
	status := StatusFor(te.Kind)
	if status >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request.Context(), "rag request failed", "kind", te.Kind, "stage", te.Stage, "error", err)
	}
	c.AbortWithStatusJSON(status, te)
}

// ─── Middleware ─────────────────────────────────────────────────────────────

const requestIDHeader = "X-Request-ID"

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		c.Header(requestIDHeader, id)
		ctx := logging.WithFields(c.Request.Context(), logging.Fields{RequestID: id, Component: "ragservice"})
		c.Request = c.Request.WithContext(ctx)

		c.Next()

		slog.InfoContext(ctx, "http request",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"status", c.Writer.Status(),
			"duration_ms", time.Since(start).Milliseconds())
	}
}

func recovery() gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		slog.ErrorContext(c.Request.Context(), "panic in rag handler", "panic", recovered)
		c.AbortWithStatusJSON(http.StatusInternalServerError, apperr.ToolError{
			Kind:    apperr.Unknown,
			Message: "internal error",
		})
	})
}
