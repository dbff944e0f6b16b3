package bizdev

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/branchline/agentmesh/actions/crm"
	"github.com/branchline/agentmesh/licensing"
	"github.com/branchline/agentmesh/llm"
	"github.com/branchline/agentmesh/types"
	"github.com/branchline/agentmesh/workflow"
)

const (
	agentName        = "bizdev"
	salesChannel     = "#sales"
	marketingChannel = "#marketing"
	defaultTenant    = "demo_tenant"
)

// CRM is the subset of the CRM client the agent depends on.
type CRM interface {
	FindContact(ctx context.Context, email string) (*crm.Contact, error)
	CreateLeadFromInquiry(ctx context.Context, name, email, company string) (string, error)
}

// Notifier posts team notifications.
type Notifier interface {
	PostNotification(ctx context.Context, channel, title, message string) (string, error)
}

// UsageRecorder meters agent requests and token consumption.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, tenantID, agent string, requests, tokens int64) (*licensing.UsageReport, error)
}

// State flows through the lead-processing workflow.
type State struct {
	LeadName    string
	LeadEmail   string
	LeadCompany string
	Context     string

	Analysis           string
	QualificationScore float64
	Recommendations    []string
	ExistingContact    *crm.Contact
	LeadID             string
	FollowupScheduled  bool
	WelcomeSent        bool
	TokensUsed         int
}

// Request is an inbound lead.
type Request struct {
	LeadName    string `json:"lead_name"`
	LeadEmail   string `json:"lead_email"`
	LeadCompany string `json:"lead_company"`
	Context     string `json:"context,omitempty"`
}

// Response is the lead-processing result envelope.
type Response struct {
	Success            bool     `json:"success"`
	Error              string   `json:"error,omitempty"`
	LeadID             string   `json:"lead_id,omitempty"`
	QualificationScore float64  `json:"qualification_score,omitempty"`
	ExistingContact    bool     `json:"existing_contact"`
	FollowupScheduled  bool     `json:"followup_scheduled"`
	WelcomeSent        bool     `json:"welcome_sent"`
	Recommendations    []string `json:"recommendations,omitempty"`
}

// Service runs the lead-processing workflow with injected collaborators.
type Service struct {
	provider llm.Provider
	crm      CRM
	notifier Notifier
	recorder UsageRecorder
	scorer   QualificationScorer
	observer workflow.Observer
	tracer   trace.Tracer
	runner   *workflow.Runner[State]
	logger   *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithScorer replaces the default regex scorer.
func WithScorer(s QualificationScorer) Option {
	return func(svc *Service) { svc.scorer = s }
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

// New builds the bizdev agent. The workflow graph is compiled once here;
// construction fails only on a programming error in the graph.
func New(provider llm.Provider, crmClient CRM, notifier Notifier, opts ...Option) (*Service, error) {
	s := &Service{
		provider: provider,
		crm:      crmClient,
		notifier: notifier,
		scorer:   RegexScorer{},
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "bizdev_agent"))

	graph, err := workflow.NewBuilder[State](agentName).
		AddStep("analyze", s.analyze).
		AddStep("check_contact", s.checkContact).
		AddStep("create_record", s.createRecord).
		AddStep("setup_followup", s.setupFollowup).
		Sequence("analyze", "check_contact", "create_record", "setup_followup").
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

// Process runs a lead through the workflow and returns the result envelope.
func (s *Service) Process(ctx context.Context, req Request) Response {
	if req.LeadName == "" || req.LeadEmail == "" {
		return Response{Error: "lead_name and lead_email are required"}
	}

	result := s.runner.Run(ctx, State{
		LeadName:    req.LeadName,
		LeadEmail:   req.LeadEmail,
		LeadCompany: req.LeadCompany,
		Context:     req.Context,
	})
	s.recordUsage(ctx, result.State.TokensUsed)

	if result.Err != nil {
		return Response{Error: result.Err.Error()}
	}
	return Response{
		Success:            true,
		LeadID:             result.State.LeadID,
		QualificationScore: result.State.QualificationScore,
		ExistingContact:    result.State.ExistingContact != nil,
		FollowupScheduled:  result.State.FollowupScheduled,
		WelcomeSent:        result.State.WelcomeSent,
		Recommendations:    result.State.Recommendations,
	}
}

const analyzeSystemPrompt = "You are a business development expert analyzing sales leads. " +
	"Assess the lead quality, identify key opportunities, and provide " +
	"qualification insights based on the available information."

func analyzeUserPrompt(state State) string {
	return fmt.Sprintf(`Analyze this lead and provide:
1. Lead qualification score (0-10)
2. Key opportunities and pain points
3. Recommended next steps
4. Timeline estimate for potential deal

Lead information:
Name: %s
Email: %s
Company: %s
Context: %s`, state.LeadName, state.LeadEmail, state.LeadCompany, state.Context)
}

func (s *Service) analyze(ctx context.Context, state State) (State, error) {
	s.logger.Info("analyzing lead",
		zap.String("lead", state.LeadName),
		zap.String("company", state.LeadCompany))

	resp, err := s.provider.Complete(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: analyzeSystemPrompt},
			{Role: llm.RoleUser, Content: analyzeUserPrompt(state)},
		},
	})
	if err != nil {
		return state, fmt.Errorf("lead analysis: %w", err)
	}

	state.Analysis = resp.Content
	state.TokensUsed += resp.Usage.TotalTokens
	state.QualificationScore = s.scorer.Score(resp.Content)
	state.Recommendations = []string{
		"Schedule discovery call within 48 hours",
		"Send relevant case studies and product information",
		"Connect with decision makers",
		"Identify budget and timeline requirements",
	}

	s.logger.Info("lead qualified", zap.Float64("score", state.QualificationScore))
	return state, nil
}

func (s *Service) checkContact(ctx context.Context, state State) (State, error) {
	contact, err := s.crm.FindContact(ctx, state.LeadEmail)
	if err != nil {
		// A failed lookup degrades to "no existing contact" rather than
		// aborting the lead.
		s.logger.Warn("contact lookup failed", zap.Error(err))
		return state, nil
	}
	if contact != nil {
		s.logger.Info("found existing contact", zap.String("contact_id", contact.ID))
	}
	state.ExistingContact = contact
	return state, nil
}

func (s *Service) createRecord(ctx context.Context, state State) (State, error) {
	if state.ExistingContact != nil {
		state.LeadID = state.ExistingContact.ID
		return state, nil
	}

	leadID, err := s.crm.CreateLeadFromInquiry(ctx, state.LeadName, state.LeadEmail, state.LeadCompany)
	if err != nil {
		return state, fmt.Errorf("create lead record: %w", err)
	}
	state.LeadID = leadID

	priority := "📋 New Lead"
	if state.QualificationScore >= 8 {
		priority = "🔥 HIGH PRIORITY"
	}
	message := fmt.Sprintf("New lead from %s:\nName: %s\nEmail: %s\nQualification Score: %g/10",
		state.LeadCompany, state.LeadName, state.LeadEmail, state.QualificationScore)
	if state.Context != "" {
		message += "\nContext: " + truncate(state.Context, 100)
	}
	s.notify(ctx, salesChannel, priority+" Lead Created", message)

	s.logger.Info("CRM record created", zap.String("lead_id", leadID))
	return state, nil
}

func (s *Service) setupFollowup(ctx context.Context, state State) (State, error) {
	delay, notes := "3 days", "Standard follow-up"
	if state.QualificationScore >= 8 {
		delay = "1 day"
		notes = fmt.Sprintf("High-priority lead (score: %g)", state.QualificationScore)
	}

	state.FollowupScheduled = s.notify(ctx, salesChannel, "Follow-up Scheduled",
		fmt.Sprintf("Follow-up scheduled for lead %s\nDelay: %s\nNotes: %s", state.LeadID, delay, notes))

	state.WelcomeSent = s.notify(ctx, marketingChannel, "Welcome Email Sent",
		fmt.Sprintf("Welcome email sent to %s at %s", state.LeadName, state.LeadCompany))

	s.logger.Info("follow-up actions completed",
		zap.Bool("followup_scheduled", state.FollowupScheduled),
		zap.Bool("welcome_sent", state.WelcomeSent))
	return state, nil
}

// notify posts a notification and reports delivery. Notification failures
// never fail the workflow.
func (s *Service) notify(ctx context.Context, channel, title, message string) bool {
	if _, err := s.notifier.PostNotification(ctx, channel, title, message); err != nil {
		s.logger.Warn("notification failed",
			zap.String("channel", channel),
			zap.Error(err))
		return false
	}
	return true
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
