package marketing

import (
	"context"
	"fmt"
	"strings"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/branchline/agentmesh/actions/twitter"
	"github.com/branchline/agentmesh/licensing"
	"github.com/branchline/agentmesh/llm"
	"github.com/branchline/agentmesh/types"
	"github.com/branchline/agentmesh/workflow"
)

const (
	agentName        = "marketing"
	marketingChannel = "#marketing"
	defaultTenant    = "demo_tenant"
)

// Publisher posts drafts to the social platform.
type Publisher interface {
	PostTweet(ctx context.Context, text, replyTo string) (*twitter.Tweet, error)
}

// Notifier posts team notifications.
type Notifier interface {
	PostNotification(ctx context.Context, channel, title, message string) (string, error)
}

// UsageRecorder meters agent requests and token consumption.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, tenantID, agent string, requests, tokens int64) (*licensing.UsageReport, error)
}

// State flows through the content workflow.
type State struct {
	Title string
	Body  string

	Tweet        string
	TweetID      string
	SlackMessage string
	Sentiment    *Sentiment
	TokensUsed   int
}

// Request is the content to draft and publish.
type Request struct {
	Title string `json:"title"`
	Body  string `json:"body"`
}

// Response is the publishing result envelope.
type Response struct {
	Success         bool       `json:"success"`
	Error           string     `json:"error,omitempty"`
	Tweet           string     `json:"tweet,omitempty"`
	TweetID         string     `json:"tweet_id,omitempty"`
	Sentiment       *Sentiment `json:"sentiment_analysis,omitempty"`
	EngagementScore float64    `json:"engagement_score"`
}

// Service runs the content workflow with injected collaborators.
type Service struct {
	provider  llm.Provider
	publisher Publisher
	notifier  Notifier
	recorder  UsageRecorder
	analyzer  SentimentAnalyzer
	observer  workflow.Observer
	tracer    trace.Tracer
	runner    *workflow.Runner[State]
	logger    *zap.Logger
}

// Option customizes a Service.
type Option func(*Service)

// WithAnalyzer replaces the default lexicon analyzer.
func WithAnalyzer(a SentimentAnalyzer) Option {
	return func(svc *Service) { svc.analyzer = a }
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

// New builds the marketing agent.
func New(provider llm.Provider, publisher Publisher, notifier Notifier, opts ...Option) (*Service, error) {
	s := &Service{
		provider:  provider,
		publisher: publisher,
		notifier:  notifier,
		analyzer:  LexiconAnalyzer{},
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.With(zap.String("component", "marketing_agent"))

	graph, err := workflow.NewBuilder[State](agentName).
		AddStep("generate", s.generate).
		AddStep("analyze", s.analyze).
		AddStep("publish", s.publish).
		Sequence("generate", "analyze", "publish").
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

// Process drafts, analyzes, and publishes content.
func (s *Service) Process(ctx context.Context, req Request) Response {
	if req.Title == "" && req.Body == "" {
		return Response{Error: "title or body is required"}
	}

	result := s.runner.Run(ctx, State{Title: req.Title, Body: req.Body})
	s.recordUsage(ctx, result.State.TokensUsed)

	if result.Err != nil {
		return Response{Error: result.Err.Error()}
	}
	resp := Response{
		Success:   true,
		Tweet:     result.State.Tweet,
		TweetID:   result.State.TweetID,
		Sentiment: result.State.Sentiment,
	}
	if result.State.Sentiment != nil {
		resp.EngagementScore = result.State.Sentiment.EngagementScore
	}
	return resp
}

const generateSystemPrompt = "You are a professional social media manager. Create engaging tweets " +
	"that are concise, on-brand, and likely to drive engagement. " +
	"Keep tweets under 280 characters and include relevant hashtags. " +
	"Use a friendly but professional tone."

func (s *Service) generate(ctx context.Context, state State) (State, error) {
	s.logger.Info("generating tweet content", zap.String("title", state.Title))

	userPrompt := fmt.Sprintf(`Create a tweet based on this content:
Title: %s
Body: %s

Make it engaging and include 2-3 relevant hashtags.`, state.Title, state.Body)

	resp, err := s.provider.Complete(ctx, &llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: generateSystemPrompt},
			{Role: llm.RoleUser, Content: userPrompt},
		},
	})
	if err != nil {
		return state, fmt.Errorf("tweet generation: %w", err)
	}

	state.Tweet = twitter.Truncate(strings.TrimSpace(resp.Content))
	state.TokensUsed += resp.Usage.TotalTokens
	return state, nil
}

func (s *Service) analyze(ctx context.Context, state State) (State, error) {
	if state.Tweet == "" {
		return state, types.NewError(types.ErrInvalidRequest, "no content to analyze")
	}
	state.Sentiment = s.analyzer.Analyze(state.Tweet)
	s.logger.Info("content analyzed",
		zap.String("sentiment", state.Sentiment.Sentiment),
		zap.Float64("engagement_score", state.Sentiment.EngagementScore))
	return state, nil
}

func (s *Service) publish(ctx context.Context, state State) (State, error) {
	if state.Tweet == "" {
		return state, types.NewError(types.ErrInvalidRequest, "no tweet content to publish")
	}

	tweet, err := s.publisher.PostTweet(ctx, state.Tweet, "")
	if err != nil {
		return state, fmt.Errorf("tweet publish: %w", err)
	}
	state.TweetID = tweet.ID

	state.SlackMessage = fmt.Sprintf("✅ Tweet published successfully!\n\nContent: %s\nTweet ID: %s",
		state.Tweet, state.TweetID)
	if _, err := s.notifier.PostNotification(ctx, marketingChannel, "Tweet Published", state.SlackMessage); err != nil {
		s.logger.Warn("publish notification failed", zap.Error(err))
	}

	s.logger.Info("content published", zap.String("tweet_id", state.TweetID))
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
