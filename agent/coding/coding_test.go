package coding

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/branchline/agentmesh/licensing"
	"github.com/branchline/agentmesh/llm"
)

type fakeProvider struct {
	content string
	tokens  int
	err     error
}

func (f *fakeProvider) Complete(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.ChatResponse{
		Content: f.content,
		Usage:   llm.ChatUsage{TotalTokens: f.tokens},
	}, nil
}

func (f *fakeProvider) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (f *fakeProvider) Name() string { return "fake" }

type fakeHost struct {
	err error
	mr  MergeRequest
}

func (f *fakeHost) CreateMergeRequest(ctx context.Context, mr MergeRequest) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.mr = mr
	return "https://github.com/" + mr.Repo + "/pull/7", nil
}

type fakeRecorder struct {
	agent  string
	tokens int64
}

func (f *fakeRecorder) RecordUsage(ctx context.Context, tenantID, agent string, requests, tokens int64) (*licensing.UsageReport, error) {
	f.agent = agent
	f.tokens += tokens
	return &licensing.UsageReport{TenantID: tenantID}, nil
}

func newTestService(t *testing.T, provider llm.Provider, host RepoHost, opts ...Option) *Service {
	t.Helper()
	opts = append(opts, WithLogger(zap.NewNop()))
	s, err := New(provider, host, opts...)
	require.NoError(t, err)
	return s
}

func TestProcessOpensMergeRequest(t *testing.T) {
	host := &fakeHost{}
	s := newTestService(t, &fakeProvider{content: "step one, step two", tokens: 60}, host)

	resp := s.Process(context.Background(), Request{
		Repo:         "acme/api",
		Branch:       "feature/widgets",
		Requirements: "Add a widgets endpoint",
	})

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "https://github.com/acme/api/pull/7", resp.MergeRequestURL)
	assert.Equal(t, 1, resp.FilesCreated)
	require.NotNil(t, resp.Analysis)
	assert.Equal(t, "step one, step two", resp.Analysis.Notes)

	assert.Equal(t, "acme/api", host.mr.Repo)
	assert.Equal(t, "feature/widgets", host.mr.Branch)
	assert.Contains(t, host.mr.Title, "Add a widgets endpoint")
	assert.Contains(t, host.mr.Description, "IMPLEMENTATION_NOTES.md")
	require.Len(t, host.mr.Files, 1)
	assert.Equal(t, "create", host.mr.Files[0].Action)
}

func TestProcessTruncatesLongTitle(t *testing.T) {
	host := &fakeHost{}
	s := newTestService(t, &fakeProvider{content: "plan"}, host)

	long := strings.Repeat("requirement ", 20)
	resp := s.Process(context.Background(), Request{Repo: "acme/api", Requirements: long})

	require.True(t, resp.Success)
	assert.True(t, strings.HasSuffix(host.mr.Title, "..."))
	assert.LessOrEqual(t, len(host.mr.Title), len("Generated implementation: ")+53)
}

func TestProcessDefaultsBranch(t *testing.T) {
	host := &fakeHost{}
	s := newTestService(t, &fakeProvider{content: "plan"}, host)

	s.Process(context.Background(), Request{Repo: "acme/api", Requirements: "do it"})
	assert.Equal(t, "main", host.mr.Branch)
}

func TestProcessNoGeneratedCode(t *testing.T) {
	s := newTestService(t, &fakeProvider{content: "   "}, &fakeHost{})

	resp := s.Process(context.Background(), Request{Repo: "acme/api", Requirements: "do it"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "no code generated to commit")
}

func TestProcessValidatesRequest(t *testing.T) {
	s := newTestService(t, &fakeProvider{}, &fakeHost{})

	resp := s.Process(context.Background(), Request{Repo: "acme/api"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "required")
}

func TestProcessHostFailure(t *testing.T) {
	host := &fakeHost{err: errors.New("host unreachable")}
	s := newTestService(t, &fakeProvider{content: "plan"}, host)

	resp := s.Process(context.Background(), Request{Repo: "acme/api", Requirements: "do it"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "host unreachable")
}

func TestProcessRecordsUsage(t *testing.T) {
	recorder := &fakeRecorder{}
	s := newTestService(t, &fakeProvider{content: "plan", tokens: 30}, &fakeHost{},
		WithRecorder(recorder))

	s.Process(context.Background(), Request{Repo: "acme/api", Requirements: "do it"})

	assert.Equal(t, agentName, recorder.agent)
	// Analyze and generate steps each consume one completion.
	assert.Equal(t, int64(60), recorder.tokens)
}

func TestDemoHostPlaceholderURL(t *testing.T) {
	host := NewDemoHost(zap.NewNop())

	url, err := host.CreateMergeRequest(context.Background(), MergeRequest{Repo: "acme/api"})
	require.NoError(t, err)
	assert.Equal(t, "https://github.com/acme/api/pull/1", url)
}
