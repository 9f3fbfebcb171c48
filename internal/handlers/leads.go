package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/mrimoveis/leadcache/internal/middleware"
	"github.com/mrimoveis/leadcache/internal/services"
	appErrors "github.com/mrimoveis/leadcache/pkg/errors"
	"github.com/mrimoveis/leadcache/pkg/logger"
	"github.com/mrimoveis/leadcache/pkg/response"
)

// LeadLoader is the subset of services.LeadService used by the HTTP layer.
type LeadLoader interface {
	Load(ctx context.Context, limit, maxPages int) services.LoadResult
	Status(ctx context.Context) services.CacheStatus
}

// LeadsHandler serves the cached leads table to the dashboards.
type LeadsHandler struct {
	svc LeadLoader
	log *zap.Logger
}

// NewLeadsHandler constructs a LeadsHandler.
func NewLeadsHandler(svc LeadLoader) (*LeadsHandler, error) {
	if svc == nil {
		return nil, errors.New("leads handler: lead service is required")
	}
	return &LeadsHandler{svc: svc, log: logger.WithModule("http")}, nil
}

type listLeadsQuery struct {
	Limit    int `form:"limit" validate:"omitempty,min=1,max=10000"`
	MaxPages int `form:"max_pages" validate:"omitempty,min=1,max=1000"`
}

// List returns the leads table. Zero query values select the service defaults.
func (h *LeadsHandler) List(c *gin.Context) {
	var query listLeadsQuery
	if !bindQueryAndValidate(c, &query) {
		return
	}

	result := h.svc.Load(c.Request.Context(), query.Limit, query.MaxPages)
	if result.WriteErr != nil {
		h.log.Warn("leads served without being cached",
			zap.String("request_id", middleware.RequestIDFrom(c)),
			zap.Error(result.WriteErr))
	}

	meta := &response.Meta{
		Total:  len(result.Leads),
		Limit:  query.Limit,
		Source: string(result.Outcome),
	}
	if !result.CachedAt.IsZero() {
		meta.CachedAt = result.CachedAt.UTC().Format(time.RFC3339)
	}

	c.Header(middleware.LeadsSourceHeader, string(result.Outcome))
	response.SuccessWithMeta(c, http.StatusOK, result.Leads.Records(), meta)
}

type cacheStatusPayload struct {
	Present    bool       `json:"present"`
	Fresh      bool       `json:"fresh"`
	CachedAt   *time.Time `json:"cached_at,omitempty"`
	AgeSeconds float64    `json:"age_seconds"`
	Leads      int        `json:"leads"`
	TTLSeconds float64    `json:"ttl_seconds"`
}

// Status describes the cache entry without contacting the CRM.
func (h *LeadsHandler) Status(c *gin.Context) {
	status := h.svc.Status(c.Request.Context())
	if status.Err != nil {
		response.Error(c, appErrors.ErrCacheUnavailable.WithInternal(status.Err))
		return
	}

	payload := cacheStatusPayload{
		Present:    status.Present,
		Fresh:      status.Fresh,
		AgeSeconds: status.Age.Seconds(),
		Leads:      status.Leads,
		TTLSeconds: status.TTL.Seconds(),
	}
	if status.Present {
		cachedAt := status.CachedAt.UTC()
		payload.CachedAt = &cachedAt
	}

	response.Success(c, http.StatusOK, payload)
}
