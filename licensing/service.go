package licensing

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/branchline/agentmesh/types"
)

// defaultLicense is applied to tenants who never created one: a 30-day
// basic plan, so metering works out of the box.
func defaultLicense(tenantID string, now time.Time) *License {
	limits := LimitsFor(PlanBasic)
	return &License{
		TenantID:     tenantID,
		Plan:         PlanBasic,
		RequestLimit: limits.Requests,
		TokenLimit:   limits.Tokens,
		ExpiresAt:    now.Add(30 * 24 * time.Hour),
		Active:       true,
	}
}

// UsageReport is the result of recording usage: the tenant's running totals
// against their license limits.
type UsageReport struct {
	TenantID      string `json:"tenant_id"`
	TotalRequests int64  `json:"total_requests"`
	TotalTokens   int64  `json:"total_tokens"`
	Limits        Limits `json:"limits"`
	Overage       bool   `json:"overage"`
}

// Billing summarizes a tenant's charges for the current period.
type Billing struct {
	TenantID      string  `json:"tenant_id"`
	BillingPeriod string  `json:"billing_period"`
	Plan          Plan    `json:"plan"`
	BaseCost      float64 `json:"base_cost"`
	Usage         struct {
		Requests int64 `json:"requests"`
		Tokens   int64 `json:"tokens"`
	} `json:"usage"`
	Limits   Limits `json:"limits"`
	Overages struct {
		Requests int64   `json:"requests"`
		Tokens   int64   `json:"tokens"`
		Cost     float64 `json:"cost"`
	} `json:"overages"`
	TotalCost float64 `json:"total_cost"`
}

// Service combines usage metering with license management. Usage recording
// is fail-open on the limit check: an over-limit tenant is flagged, never
// blocked, so billing handles overages instead of dropped requests.
type Service struct {
	usage    *UsageStore
	licenses *LicenseStore
	logger   *zap.Logger
	now      func() time.Time
}

// NewService creates a licensing service.
func NewService(usage *UsageStore, licenses *LicenseStore, logger *zap.Logger) *Service {
	return &Service{
		usage:    usage,
		licenses: licenses,
		logger:   logger.With(zap.String("component", "licensing")),
		now:      time.Now,
	}
}

// RecordUsage meters one agent invocation and reports the tenant's totals
// against their limits.
func (s *Service) RecordUsage(ctx context.Context, tenantID, agent string, requests, tokens int64) (*UsageReport, error) {
	if err := s.usage.Record(ctx, tenantID, agent, requests, tokens); err != nil {
		return nil, err
	}

	usage, err := s.usage.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	limits := s.limitsFor(ctx, tenantID)

	report := &UsageReport{
		TenantID:      tenantID,
		TotalRequests: usage.TotalRequests,
		TotalTokens:   usage.TotalTokens,
		Limits:        limits,
		Overage:       usage.TotalRequests > limits.Requests || usage.TotalTokens > limits.Tokens,
	}
	if report.Overage {
		s.logger.Warn("tenant over limits",
			zap.String("tenant_id", tenantID),
			zap.Int64("total_requests", usage.TotalRequests),
			zap.Int64("total_tokens", usage.TotalTokens),
		)
	}
	return report, nil
}

// GetUsage returns a tenant's raw usage counters.
func (s *Service) GetUsage(ctx context.Context, tenantID string) (*Usage, error) {
	return s.usage.Get(ctx, tenantID)
}

// CreateLicense creates or replaces a tenant's license.
func (s *Service) CreateLicense(ctx context.Context, tenantID string, plan Plan, expiresAt time.Time, active bool) (*License, error) {
	if !plan.Valid() {
		return nil, types.NewError(types.ErrInvalidRequest, "unknown plan: "+string(plan))
	}
	lic := &License{
		TenantID:  tenantID,
		Plan:      plan,
		ExpiresAt: expiresAt,
		Active:    active,
	}
	if err := s.licenses.Save(ctx, lic); err != nil {
		return nil, err
	}
	return lic, nil
}

// GetLicense returns a tenant's license, or NOT_FOUND.
func (s *Service) GetLicense(ctx context.Context, tenantID string) (*License, error) {
	return s.licenses.Get(ctx, tenantID)
}

// GetBilling computes a tenant's charges for the current period: plan base
// price plus per-unit overage charges.
func (s *Service) GetBilling(ctx context.Context, tenantID string) (*Billing, error) {
	usage, err := s.usage.Get(ctx, tenantID)
	if err != nil {
		return nil, err
	}

	plan := PlanBasic
	if lic, err := s.licenses.Get(ctx, tenantID); err == nil {
		plan = lic.Plan
	}
	limits := LimitsFor(plan)

	requestOverage := max(0, usage.TotalRequests-limits.Requests)
	tokenOverage := max(0, usage.TotalTokens-limits.Tokens)
	overageCost := round2(float64(requestOverage)*overageRatePerRequest +
		float64(tokenOverage)*overageRatePerToken)

	b := &Billing{
		TenantID:      tenantID,
		BillingPeriod: s.now().Format("2006-01"),
		Plan:          plan,
		BaseCost:      BasePrice(plan),
		Limits:        limits,
	}
	b.Usage.Requests = usage.TotalRequests
	b.Usage.Tokens = usage.TotalTokens
	b.Overages.Requests = requestOverage
	b.Overages.Tokens = tokenOverage
	b.Overages.Cost = overageCost
	b.TotalCost = round2(b.BaseCost + overageCost)
	return b, nil
}

// limitsFor resolves a tenant's effective limits, defaulting to a fresh
// basic license when none is stored.
func (s *Service) limitsFor(ctx context.Context, tenantID string) Limits {
	lic, err := s.licenses.Get(ctx, tenantID)
	if err != nil {
		return defaultLicense(tenantID, s.now()).Limits()
	}
	return lic.Limits()
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
