package security

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
	agentName       = "security"
	securityChannel = "#security"
	defaultTenant   = "demo_tenant"
)

// Notifier posts team notifications.
type Notifier interface {
	PostNotification(ctx context.Context, channel, title, message string) (string, error)
}

// UsageRecorder meters agent requests and token consumption.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, tenantID, agent string, requests, tokens int64) (*licensing.UsageReport, error)
}

// State flows through the assessment workflow.
type State struct {
	Target   string
	ScanType string

	Vulnerabilities []Vulnerability
	Compliance      *Compliance
	Report          string
	RiskScore       float64
	Recommendations []string
	TokensUsed      int
}

// Request names the target to assess.
type Request struct {
	Target   string `json:"target"`
	ScanType string `json:"scan_type,omitempty"`
}

// Response is the assessment result envelope.
type Response struct {
	Success              bool            `json:"success"`
	Error                string          `json:"error,omitempty"`
	Target               string          `json:"target,omitempty"`
	VulnerabilitiesFound int             `json:"vulnerabilities_found"`
	RiskScore            float64         `json:"risk_score"`
	ComplianceScore      float64         `json:"compliance_score"`
	Report               string          `json:"security_report,omitempty"`
	Recommendations      []string        `json:"recommendations,omitempty"`
	Findings             []Vulnerability `json:"detailed_findings,omitempty"`
}

// Service runs the assessment workflow with injected collaborators.
type Service struct {
	provider llm.Provider
	notifier Notifier
	recorder UsageRecorder
	scorer   RiskScorer
	observer workflow.Observer
	tracer   trace.Tracer
	runner   *workflow.Runner[State]
	logger   *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithScorer replaces the default weighted risk scorer.
func WithScorer(r RiskScorer) Option {
	return func(svc *Service) { svc.scorer = r }
}

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

// New builds the security agent.
func New(provider llm.Provider, notifier Notifier, opts ...Option) (*Service, error) {
	s := &Service{
		provider: provider,
		notifier: notifier,
		scorer:   WeightedScorer{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "security_agent"))

	graph, err := workflow.NewBuilder[State](agentName).
		AddStep("scan", s.scan).
		AddStep("compliance", s.compliance).
		AddStep("report", s.report).
		Sequence("scan", "compliance", "report").
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

// Process runs a security assessment for a target.
func (s *Service) Process(ctx context.Context, req Request) Response {
	if req.Target == "" {
		return Response{Error: "target is required"}
	}
	if req.ScanType == "" {
		req.ScanType = ScanComprehensive
	}

	result := s.runner.Run(ctx, State{Target: req.Target, ScanType: req.ScanType})
	s.recordUsage(ctx, result.State.TokensUsed)

	if result.Err != nil {
		return Response{Error: result.Err.Error()}
	}
	return Response{
		Success:              true,
		Target:               result.State.Target,
		VulnerabilitiesFound: len(result.State.Vulnerabilities),
		RiskScore:            result.State.RiskScore,
		ComplianceScore:      result.State.Compliance.OverallScore,
		Report:               result.State.Report,
		Recommendations:      result.State.Recommendations,
		Findings:             result.State.Vulnerabilities,
	}
}

const scanSystemPrompt = "You are a cybersecurity expert analyzing potential security vulnerabilities. " +
	"Identify common security issues and provide specific remediation guidance."

func (s *Service) scan(ctx context.Context, state State) (State, error) {
	s.logger.Info("starting security scan",
		zap.String("target", state.Target),
		zap.String("scan_type", state.ScanType))

	userPrompt := fmt.Sprintf(`Analyze the security posture for: %s
Scan type: %s

Focus on:
1. Common vulnerabilities (OWASP Top 10)
2. Configuration issues
3. Access control problems
4. Data protection concerns

Provide specific findings and remediation steps.`, state.Target, state.ScanType)

	resp, err := s.provider.Complete(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: scanSystemPrompt},
			{Role: llm.RoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return state, fmt.Errorf("security analysis: %w", err)
	}
	state.TokensUsed += resp.Usage.TotalTokens

	analysis := resp.Content
	if len(analysis) > 200 {
		analysis = analysis[:200] + "..."
	}

	state.Vulnerabilities = Findings(state.ScanType)
	for i := range state.Vulnerabilities {
		state.Vulnerabilities[i].Analysis = analysis
	}

	s.logger.Info("scan completed", zap.Int("findings", len(state.Vulnerabilities)))
	return state, nil
}

func (s *Service) compliance(ctx context.Context, state State) (State, error) {
	state.Compliance = Assess(state.Vulnerabilities)
	s.logger.Info("compliance check completed",
		zap.Float64("overall_score", state.Compliance.OverallScore))
	return state, nil
}

const reportSystemPrompt = "You are a security analyst writing an executive summary for a security assessment. " +
	"Create a concise, business-focused summary that highlights key risks and recommendations."

func (s *Service) report(ctx context.Context, state State) (State, error) {
	var topTitles []string
	for i, v := range state.Vulnerabilities {
		if i == 3 {
			break
		}
		topTitles = append(topTitles, v.Title)
	}

	findings := fmt.Sprintf(`Target: %s
Vulnerabilities found: %d
Compliance score: %g%%

Top vulnerabilities: %s`,
		state.Target, len(state.Vulnerabilities), state.Compliance.OverallScore,
		strings.Join(topTitles, ", "))

	resp, err := s.provider.Complete(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: reportSystemPrompt},
			{Role: llm.RoleUser, Content: "Create an executive summary for these security findings: " + findings},
		},
	})
	if err != nil {
		return state, fmt.Errorf("executive summary: %w", err)
	}
	state.TokensUsed += resp.Usage.TotalTokens

	state.Report = BuildReport(state.Target, state.Vulnerabilities, state.Compliance, resp.Content)
	state.RiskScore = s.scorer.Score(state.Vulnerabilities, state.Compliance)

	state.Recommendations = nil
	if state.Compliance.Severity.High > 0 {
		state.Recommendations = append(state.Recommendations,
			"Immediately address high-severity vulnerabilities")
	}
	if state.Compliance.OverallScore < 80 {
		state.Recommendations = append(state.Recommendations,
			"Improve compliance posture to meet industry standards")
	}
	if len(state.Vulnerabilities) > 10 {
		state.Recommendations = append(state.Recommendations,
			"Implement automated security scanning in CI/CD pipeline")
	}
	state.Recommendations = append(state.Recommendations,
		"Conduct regular security training for development team",
		"Implement security monitoring and alerting",
		"Schedule quarterly security assessments",
	)

	if _, err := s.notifier.PostNotification(ctx, securityChannel, "Security Assessment Complete",
		fmt.Sprintf("Security assessment completed for %s\nOverall Score: %g%%\nCritical Issues: %d\nTotal Vulnerabilities: %d",
			state.Target, state.Compliance.OverallScore,
			state.Compliance.Severity.Critical, len(state.Vulnerabilities))); err != nil {
		s.logger.Warn("report notification failed", zap.Error(err))
	}

	s.logger.Info("security report generated", zap.Float64("risk_score", state.RiskScore))
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
