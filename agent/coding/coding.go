package coding

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/branchline/agentmesh/licensing"
	"github.com/branchline/agentmesh/llm"
	"github.com/branchline/agentmesh/types"
	"github.com/branchline/agentmesh/workflow"
)

const (
	agentName     = "coding"
	defaultTenant = "demo_tenant"
)

// UsageRecorder meters agent requests and token consumption.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, tenantID, agent string, requests, tokens int64) (*licensing.UsageReport, error)
}

// Analysis is the requirements breakdown produced by the analyze step.
type Analysis struct {
	Summary string `json:"summary"`
	Notes   string `json:"llm_analysis,omitempty"`
}

// State flows through the code-generation workflow.
type State struct {
	Repo         string
	Branch       string
	Requirements string

	Analysis        *Analysis
	GeneratedFiles  []File
	MergeRequestURL string
	TokensUsed      int
}

// Request names the repository and requirements to implement.
type Request struct {
	Repo         string `json:"repo"`
	Branch       string `json:"branch"`
	Requirements string `json:"requirements"`
}

// Response is the code-generation result envelope.
type Response struct {
	Success         bool      `json:"success"`
	Error           string    `json:"error,omitempty"`
	MergeRequestURL string    `json:"merge_request_url,omitempty"`
	FilesCreated    int       `json:"files_created"`
	Analysis        *Analysis `json:"analysis,omitempty"`
}

// Service runs the code-generation workflow with injected collaborators.
type Service struct {
	provider llm.Provider
	host     RepoHost
	recorder UsageRecorder
	observer workflow.Observer
	tracer   trace.Tracer
	runner   *workflow.Runner[State]
	logger   *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithRecorder enables usage metering.
func WithRecorder(r UsageRecorder) Option {
	return func(svc *Service) { svc.recorder = r }
}

// WithObserver attaches a workflow observer (metrics).
func WithObserver(o workflow.Observer) Option {
	return func(svc *Service) { svc.observer = o }
}

// WithTracer attaches an OTel tracer for per-step spans.
func WithTracer(t trace.Tracer) Option {
	return func(svc *Service) { svc.tracer = t }
}

// WithLogger sets the service logger.
func WithLogger(l *zap.Logger) Option {
	return func(svc *Service) { svc.logger = l }
}

// New builds the coding agent.
func New(provider llm.Provider, host RepoHost, opts ...Option) (*Service, error) {
	s := &Service{
		provider: provider,
		host:     host,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "coding_agent"))

	graph, err := workflow.NewBuilder[State](agentName).
		AddStep("analyze", s.analyze).
		AddStep("generate", s.generate).
		AddStep("create_pr", s.createPR).
		Sequence("analyze", "generate", "create_pr").
		Compile()
	if err != nil {
		return nil, err
	}

	runnerOpts := []workflow.Option[State]{workflow.WithLogger[State](s.logger)}
	if s.observer != nil {
		runnerOpts = append(runnerOpts, workflow.WithObserver[State](s.observer))
	}
	if s.tracer != nil {
		runnerOpts = append(runnerOpts, workflow.WithTracer[State](s.tracer))
	}
	s.runner = workflow.NewRunner(graph, runnerOpts...)
	return s, nil
}

// Process implements requirements against a repository and opens a merge
// request.
func (s *Service) Process(ctx context.Context, req Request) Response {
	if req.Repo == "" || req.Requirements == "" {
		return Response{Error: "repo and requirements are required"}
	}
	if req.Branch == "" {
		req.Branch = "main"
	}

	result := s.runner.Run(ctx, State{
		Repo:         req.Repo,
		Branch:       req.Branch,
		Requirements: req.Requirements,
	})
	s.recordUsage(ctx, result.State.TokensUsed)

	if result.Err != nil {
		return Response{Error: result.Err.Error()}
	}
	return Response{
		Success:         true,
		MergeRequestURL: result.State.MergeRequestURL,
		FilesCreated:    len(result.State.GeneratedFiles),
		Analysis:        result.State.Analysis,
	}
}

const analyzeSystemPrompt = "You are a senior software engineer analyzing code requirements. " +
	"Break down the requirements into specific implementation tasks."

func (s *Service) analyze(ctx context.Context, state State) (State, error) {
	s.logger.Info("analyzing requirements", zap.String("repo", state.Repo))

	resp, err := s.provider.Complete(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: analyzeSystemPrompt},
			{Role: llm.RoleUser, Content: "Requirements: " + state.Requirements},
		},
	})
	if err != nil {
		return state, fmt.Errorf("requirements analysis: %w", err)
	}

	state.TokensUsed += resp.Usage.TotalTokens
	state.Analysis = &Analysis{
		Summary: "Code analysis completed",
		Notes:   resp.Content,
	}
	return state, nil
}

const generateSystemPrompt = "You are an expert programmer. Generate clean, well-documented code " +
	"that implements the given requirements. Follow best practices and " +
	"include error handling."

func (s *Service) generate(ctx context.Context, state State) (State, error) {
	s.logger.Info("generating implementation")

	notes := ""
	if state.Analysis != nil {
		notes = state.Analysis.Notes
	}
	contextPrompt := fmt.Sprintf(`Repository: %s
Branch: %s
Requirements: %s
Analysis: %s

Generate code files that implement these requirements.`,
		state.Repo, state.Branch, state.Requirements, notes)

	resp, err := s.provider.Complete(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: generateSystemPrompt},
			{Role: llm.RoleUser, Content: contextPrompt},
		},
	})
	if err != nil {
		return state, fmt.Errorf("code generation: %w", err)
	}
	state.TokensUsed += resp.Usage.TotalTokens

	if content := strings.TrimSpace(resp.Content); content != "" {
		state.GeneratedFiles = append(state.GeneratedFiles, File{
			Path:    "IMPLEMENTATION_NOTES.md",
			Content: "# Implementation Notes\n\n" + content,
			Action:  "create",
		})
	}
	return state, nil
}

func (s *Service) createPR(ctx context.Context, state State) (State, error) {
	if len(state.GeneratedFiles) == 0 {
		return state, types.NewError(types.ErrInvalidRequest, "no code generated to commit")
	}

	var paths []string
	for _, f := range state.GeneratedFiles {
		paths = append(paths, f.Path)
	}
	summary := "Code analysis completed"
	if state.Analysis != nil {
		summary = state.Analysis.Summary
	}

	title := "Generated implementation: " + truncate(state.Requirements, 50)
	description := fmt.Sprintf(`# Generated Code Implementation

## Requirements
%s

## Analysis Summary
%s

## Generated Files
%s

Please review carefully before merging.`,
		state.Requirements, summary, strings.Join(paths, ", "))

	url, err := s.host.CreateMergeRequest(ctx, MergeRequest{
		Repo:        state.Repo,
		Branch:      state.Branch,
		Title:       title,
		Description: description,
		Files:       state.GeneratedFiles,
	})
	if err != nil {
		return state, fmt.Errorf("create merge request: %w", err)
	}
	state.MergeRequestURL = url

	s.logger.Info("merge request created", zap.String("url", url))
	return state, nil
}

func (s *Service) recordUsage(ctx context.Context, tokens int) {
	if s.recorder == nil {
		return
	}
	tenant, ok := types.TenantID(ctx)
	if !ok {
		tenant = defaultTenant
	}
	if _, err := s.recorder.RecordUsage(ctx, tenant, agentName, 1, int64(tokens)); err != nil {
		s.logger.Warn("usage recording failed", zap.Error(err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
