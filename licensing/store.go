package licensing

import (
	"context"
	"errors"
	"time"

	"github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/branchline/agentmesh/types"
)

// License is one tenant's subscription record.
type License struct {
	TenantID     string    `gorm:"primaryKey" json:"tenant_id"`
	Plan         Plan      `gorm:"size:32" json:"plan"`
	RequestLimit int64     `json:"request_limit"`
	TokenLimit   int64     `json:"token_limit"`
	ExpiresAt    time.Time `json:"expires_at"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Limits returns the license's effective limits.
func (l *License) Limits() Limits {
	return Limits{Requests: l.RequestLimit, Tokens: l.TokenLimit}
}

// Expired reports whether the license has lapsed.
func (l *License) Expired(now time.Time) bool {
	return !l.ExpiresAt.IsZero() && now.After(l.ExpiresAt)
}

// LicenseStore persists licenses in SQLite via gorm.
type LicenseStore struct {
	db     *gorm.DB
	logger *zap.Logger
}

// OpenLicenseStore opens (and migrates) the license database at path.
func OpenLicenseStore(path string, logger *zap.Logger) (*LicenseStore, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{})
	if err != nil {
		return nil, types.NewError(types.ErrServiceUnavailable, "failed to open license database").WithCause(err)
	}
	if err := db.AutoMigrate(&License{}); err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to migrate license schema").WithCause(err)
	}
	return &LicenseStore{
		db:     db,
		logger: logger.With(zap.String("component", "license_store")),
	}, nil
}

// Save creates or updates a tenant's license. Plan limits are applied here
// so a stored license always carries the limits of its plan.
func (s *LicenseStore) Save(ctx context.Context, lic *License) error {
	if lic.TenantID == "" {
		return types.NewError(types.ErrInvalidRequest, "tenant_id is required")
	}
	limits := LimitsFor(lic.Plan)
	lic.RequestLimit = limits.Requests
	lic.TokenLimit = limits.Tokens

	if err := s.db.WithContext(ctx).Save(lic).Error; err != nil {
		return types.NewError(types.ErrInternalError, "failed to save license").WithCause(err)
	}

	s.logger.Info("license saved",
		zap.String("tenant_id", lic.TenantID),
		zap.String("plan", string(lic.Plan)),
	)
	return nil
}

// Get returns a tenant's license, or a NOT_FOUND error.
func (s *LicenseStore) Get(ctx context.Context, tenantID string) (*License, error) {
	var lic License
	err := s.db.WithContext(ctx).First(&lic, "tenant_id = ?", tenantID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, types.NewError(types.ErrNotFound, "license not found")
	}
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to load license").WithCause(err)
	}
	return &lic, nil
}

// List returns all licenses ordered by tenant.
func (s *LicenseStore) List(ctx context.Context) ([]License, error) {
	var licenses []License
	if err := s.db.WithContext(ctx).Order("tenant_id").Find(&licenses).Error; err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to list licenses").WithCause(err)
	}
	return licenses, nil
}
