package licensing

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/branchline/agentmesh/config"
	"github.com/branchline/agentmesh/types"
)

// AgentUsage is the consumption of one agent type for a tenant.
type AgentUsage struct {
	Requests int64 `json:"requests"`
	Tokens   int64 `json:"tokens"`
}

// Usage is a tenant's aggregated consumption across agents.
type Usage struct {
	TenantID      string                `json:"tenant_id"`
	PerAgent      map[string]AgentUsage `json:"usage"`
	TotalRequests int64                 `json:"total_requests"`
	TotalTokens   int64                 `json:"total_tokens"`
}

// UsageStore keeps per-tenant usage counters in Redis. Counters live in one
// hash per tenant with a field per agent and unit, so recording is a pair of
// HINCRBY calls and reads are a single HGETALL.
type UsageStore struct {
	rdb    *redis.Client
	logger *zap.Logger
}

// NewUsageStore connects a usage store to Redis.
func NewUsageStore(cfg config.RedisConfig, logger *zap.Logger) *UsageStore {
	rdb := redis.NewClient(&redis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: cfg.MinIdleConns,
	})
	return newUsageStore(rdb, logger)
}

func newUsageStore(rdb *redis.Client, logger *zap.Logger) *UsageStore {
	return &UsageStore{
		rdb:    rdb,
		logger: logger.With(zap.String("component", "usage_store")),
	}
}

func usageKey(tenantID string) string { return "usage:" + tenantID }

// Record adds requests and tokens to a tenant's counters for one agent.
func (s *UsageStore) Record(ctx context.Context, tenantID, agent string, requests, tokens int64) error {
	if tenantID == "" || agent == "" {
		return types.NewError(types.ErrInvalidRequest, "tenant and agent are required")
	}

	key := usageKey(tenantID)
	pipe := s.rdb.Pipeline()
	pipe.HIncrBy(ctx, key, agent+":requests", requests)
	pipe.HIncrBy(ctx, key, agent+":tokens", tokens)
	if _, err := pipe.Exec(ctx); err != nil {
		return types.NewError(types.ErrServiceUnavailable, "failed to record usage").
			WithCause(err).WithRetryable(true)
	}

	s.logger.Debug("usage recorded",
		zap.String("tenant_id", tenantID),
		zap.String("agent", agent),
		zap.Int64("requests", requests),
		zap.Int64("tokens", tokens),
	)
	return nil
}

// Get returns a tenant's usage across all agents. A tenant with no recorded
// usage gets zero totals, not an error.
func (s *UsageStore) Get(ctx context.Context, tenantID string) (*Usage, error) {
	fields, err := s.rdb.HGetAll(ctx, usageKey(tenantID)).Result()
	if err != nil {
		return nil, types.NewError(types.ErrServiceUnavailable, "failed to read usage").
			WithCause(err).WithRetryable(true)
	}

	usage := &Usage{
		TenantID: tenantID,
		PerAgent: make(map[string]AgentUsage),
	}
	for field, raw := range fields {
		agent, unit, ok := strings.Cut(field, ":")
		if !ok {
			continue
		}
		n, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			return nil, types.NewError(types.ErrInternalError,
				fmt.Sprintf("corrupt usage counter %q", field)).WithCause(err)
		}

		au := usage.PerAgent[agent]
		switch unit {
		case "requests":
			au.Requests += n
			usage.TotalRequests += n
		case "tokens":
			au.Tokens += n
			usage.TotalTokens += n
		}
		usage.PerAgent[agent] = au
	}
	return usage, nil
}

// Ping verifies the Redis connection.
func (s *UsageStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close releases the Redis connection pool.
func (s *UsageStore) Close() error {
	return s.rdb.Close()
}
