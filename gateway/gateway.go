package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/branchline/agentmesh/agent/bizdev"
	"github.com/branchline/agentmesh/agent/coding"
	"github.com/branchline/agentmesh/agent/marketing"
	"github.com/branchline/agentmesh/agent/security"
	"github.com/branchline/agentmesh/licensing"
	"github.com/branchline/agentmesh/types"
)

// Agent process interfaces, satisfied by the agent services.
type (
	BizDevAgent interface {
		Process(ctx context.Context, req bizdev.Request) bizdev.Response
	}
	MarketingAgent interface {
		Process(ctx context.Context, req marketing.Request) marketing.Response
	}
	SecurityAgent interface {
		Process(ctx context.Context, req security.Request) security.Response
	}
	CodingAgent interface {
		Process(ctx context.Context, req coding.Request) coding.Response
	}
)

// Agents bundles the four agent services behind the gateway.
type Agents struct {
	BizDev    BizDevAgent
	Marketing MarketingAgent
	Security  SecurityAgent
	Coding    CodingAgent
}

// TenantProvisioner creates the license backing a new tenant.
type TenantProvisioner interface {
	CreateLicense(ctx context.Context, tenantID string, plan licensing.Plan, expiresAt time.Time, active bool) (*licensing.License, error)
}

// Gateway is the platform HTTP API.
type Gateway struct {
	agents  Agents
	tenants TenantProvisioner
	checks  map[string]HealthCheck
	version string
	logger  *zap.Logger
}

// Option customizes a Gateway.
type Option func(*Gateway)

// WithVersion sets the version reported by /version and /health.
func WithVersion(v string) Option {
	return func(g *Gateway) { g.version = v }
}

// WithTenantProvisioner enables license creation on POST /api/tenants.
func WithTenantProvisioner(p TenantProvisioner) Option {
	return func(g *Gateway) { g.tenants = p }
}

// WithHealthCheck registers a named collaborator probe for /health.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(g *Gateway) { g.checks[name] = check }
}

// WithLogger sets the gateway logger.
func WithLogger(l *zap.Logger) Option {
	return func(g *Gateway) { g.logger = l }
}

// New creates the gateway.
func New(agents Agents, opts ...Option) *Gateway {
	g := &Gateway{
		agents:  agents,
		checks:  make(map[string]HealthCheck),
		version: "dev",
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(g)
	}
	g.logger = g.logger.With(zap.String("component", "gateway"))
	return g
}

// Register mounts the gateway routes on mux.
func (g *Gateway) Register(mux *http.ServeMux) {
	mux.HandleFunc("POST /api/bizdev_agent/process_lead", g.processLead)
	mux.HandleFunc("POST /api/marketing_agent/draft", g.draft)
	mux.HandleFunc("POST /api/security_agent/scan", g.scan)
	mux.HandleFunc("POST /api/coding_agent/consume", g.consume)
	mux.HandleFunc("POST /api/tenants", g.createTenant)
	mux.HandleFunc("GET /health", g.health)
	mux.HandleFunc("GET /version", g.versionInfo)
	mux.HandleFunc("GET /{$}", g.root)
}

func (g *Gateway) processLead(w http.ResponseWriter, r *http.Request) {
	var req bizdev.Request
	if !g.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, g.agents.BizDev.Process(r.Context(), req))
}

func (g *Gateway) draft(w http.ResponseWriter, r *http.Request) {
	var req marketing.Request
	if !g.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, g.agents.Marketing.Process(r.Context(), req))
}

func (g *Gateway) scan(w http.ResponseWriter, r *http.Request) {
	var req security.Request
	if !g.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, g.agents.Security.Process(r.Context(), req))
}

func (g *Gateway) consume(w http.ResponseWriter, r *http.Request) {
	var req coding.Request
	if !g.decode(w, r, &req) {
		return
	}
	writeJSON(w, http.StatusOK, g.agents.Coding.Process(r.Context(), req))
}

type tenantRequest struct {
	Name  string         `json:"name"`
	Email string         `json:"email,omitempty"`
	Plan  licensing.Plan `json:"plan,omitempty"`
}

func (g *Gateway) createTenant(w http.ResponseWriter, r *http.Request) {
	var req tenantRequest
	if !g.decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, types.NewError(types.ErrInvalidRequest, "name is required"))
		return
	}
	if req.Plan == "" {
		req.Plan = licensing.PlanBasic
	}

	tenantID := "tenant-" + uuid.NewString()
	if g.tenants != nil {
		expires := time.Now().Add(30 * 24 * time.Hour)
		if _, err := g.tenants.CreateLicense(r.Context(), tenantID, req.Plan, expires, true); err != nil {
			writeError(w, err)
			return
		}
	}

	g.logger.Info("tenant created",
		zap.String("tenant_id", tenantID),
		zap.String("plan", string(req.Plan)))
	writeJSON(w, http.StatusOK, map[string]any{
		"success":   true,
		"tenant_id": tenantID,
		"name":      req.Name,
		"plan":      req.Plan,
		"status":    "active",
	})
}

func (g *Gateway) versionInfo(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"name":    "agentmesh",
		"version": g.version,
	})
}

func (g *Gateway) root(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":        "agentmesh",
		"version":     g.version,
		"description": "Multi-tenant, agent-based platform for automation",
		"agents":      []string{"bizdev", "coding", "marketing", "security"},
	})
}

func (g *Gateway) decode(w http.ResponseWriter, r *http.Request, out any) bool {
	if err := json.NewDecoder(r.Body).Decode(out); err != nil {
		writeError(w, types.NewError(types.ErrInvalidRequest, "invalid JSON body").WithCause(err))
		return false
	}
	return true
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
