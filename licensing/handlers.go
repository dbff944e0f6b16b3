package licensing

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/branchline/agentmesh/types"
)

// Handler serves the internal licensing HTTP API. All endpoints require the
// service-to-service bearer token.
type Handler struct {
	service *Service
	token   string
	logger  *zap.Logger
}

// NewHandler creates the licensing API handler.
func NewHandler(service *Service, serviceToken string, logger *zap.Logger) *Handler {
	return &Handler{
		service: service,
		token:   serviceToken,
		logger:  logger.With(zap.String("component", "licensing_api")),
	}
}

// Register mounts the licensing routes on mux.
func (h *Handler) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/usage/record", h.auth(h.recordUsage))
	mux.HandleFunc("GET /api/usage/{tenant_id}", h.auth(h.getUsage))
	mux.HandleFunc("POST /api/licenses", h.auth(h.createLicense))
	mux.HandleFunc("GET /api/licenses/{tenant_id}", h.auth(h.getLicense))
	mux.HandleFunc("GET /api/billing/{tenant_id}", h.auth(h.getBilling))
}

func (h *Handler) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		token, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || h.token == "" || token != h.token {
			writeError(w, types.NewError(types.ErrAuthentication, "invalid service token").
				WithHTTPStatus(http.StatusUnauthorized))
			return
		}
		next(w, r)
	}
}

type recordUsageRequest struct {
	TenantID  string `json:"tenant_id"`
	AgentType string `json:"agent_type"`
	Requests  int64  `json:"requests_count"`
	Tokens    int64  `json:"tokens_used"`
}

func (h *Handler) recordUsage(w http.ResponseWriter, r *http.Request) {
	var req recordUsageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.NewError(types.ErrInvalidRequest, "invalid JSON body").
			WithHTTPStatus(http.StatusBadRequest))
		return
	}
	if req.Requests == 0 {
		req.Requests = 1
	}

	report, err := h.service.RecordUsage(r.Context(), req.TenantID, req.AgentType, req.Requests, req.Tokens)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"tenant_id": report.TenantID,
		"current_usage": map[string]int64{
			"total_requests": report.TotalRequests,
			"total_tokens":   report.TotalTokens,
		},
		"limits":  report.Limits,
		"overage": report.Overage,
	})
}

func (h *Handler) getUsage(w http.ResponseWriter, r *http.Request) {
	usage, err := h.service.GetUsage(r.Context(), r.PathValue("tenant_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, usage)
}

type createLicenseRequest struct {
	TenantID  string    `json:"tenant_id"`
	Plan      Plan      `json:"plan"`
	ExpiresAt time.Time `json:"expires_at"`
	Active    *bool     `json:"active"`
}

func (h *Handler) createLicense(w http.ResponseWriter, r *http.Request) {
	var req createLicenseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, types.NewError(types.ErrInvalidRequest, "invalid JSON body").
			WithHTTPStatus(http.StatusBadRequest))
		return
	}
	active := true
	if req.Active != nil {
		active = *req.Active
	}
	if req.ExpiresAt.IsZero() {
		req.ExpiresAt = time.Now().Add(30 * 24 * time.Hour)
	}

	lic, err := h.service.CreateLicense(r.Context(), req.TenantID, req.Plan, req.ExpiresAt, active)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"tenant_id": lic.TenantID,
		"license":   lic,
	})
}

func (h *Handler) getLicense(w http.ResponseWriter, r *http.Request) {
	lic, err := h.service.GetLicense(r.Context(), r.PathValue("tenant_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"tenant_id": lic.TenantID,
		"license":   lic,
	})
}

func (h *Handler) getBilling(w http.ResponseWriter, r *http.Request) {
	billing, err := h.service.GetBilling(r.Context(), r.PathValue("tenant_id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, billing)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, err error) {
	code := types.ErrInternalError
	msg := "internal error"
	if e, ok := err.(*types.Error); ok {
		code = e.Code
		msg = e.Message
	}

	writeJSON(w, types.HTTPStatusFor(err), map[string]any{
		"success": false,
		"error":   msg,
		"code":    code,
	})
}
