package security

import (
	"context"
	"errors"
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

type fakeNotifier struct {
	channels []string
	messages []string
}

func (f *fakeNotifier) PostNotification(ctx context.Context, channel, title, message string) (string, error) {
	f.channels = append(f.channels, channel)
	f.messages = append(f.messages, message)
	return "1234567890.123456", nil
}

type fakeRecorder struct {
	requests int64
	tokens   int64
}

func (f *fakeRecorder) RecordUsage(ctx context.Context, tenantID, agent string, requests, tokens int64) (*licensing.UsageReport, error) {
	f.requests += requests
	f.tokens += tokens
	return &licensing.UsageReport{TenantID: tenantID}, nil
}

func newTestService(t *testing.T, provider llm.Provider, notifier Notifier, opts ...Option) *Service {
	t.Helper()
	opts = append(opts, WithLogger(zap.NewNop()))
	s, err := New(provider, notifier, opts...)
	require.NoError(t, err)
	return s
}

func TestFindingsByScanType(t *testing.T) {
	tests := []struct {
		scanType string
		wantIDs  []string
	}{
		{ScanComprehensive, []string{"VULN-001", "VULN-002", "VULN-003", "VULN-004", "VULN-005"}},
		{ScanWeb, []string{"VULN-001", "VULN-002"}},
		{ScanInfrastructure, []string{"VULN-003", "VULN-005"}},
		{"quick", []string{"VULN-001", "VULN-002", "VULN-003"}},
	}
	for _, tt := range tests {
		t.Run(tt.scanType, func(t *testing.T) {
			var ids []string
			for _, v := range Findings(tt.scanType) {
				ids = append(ids, v.ID)
			}
			assert.Equal(t, tt.wantIDs, ids)
		})
	}
}

func TestAssessComprehensiveCatalog(t *testing.T) {
	c := Assess(Findings(ScanComprehensive))

	// 1 critical, 2 high, 2 medium: 25 + 30 + 16 = 71 points off.
	assert.Equal(t, 29.0, c.OverallScore)
	assert.Equal(t, 5, c.Total)
	assert.Equal(t, SeverityBreakdown{Critical: 1, High: 2, Medium: 2}, c.Severity)

	assert.Equal(t, 50.0, c.Frameworks["owasp_top_10"].Score)
	assert.Equal(t, 30.0, c.Frameworks["pci_dss"].Score)
	assert.Equal(t, 75.0, c.Frameworks["iso_27001"].Score)
	assert.Equal(t, 45.0, c.Frameworks["nist_cybersecurity"].Score)

	assert.Contains(t, c.Recommendations, "Immediate remediation required for critical security issues")
	assert.Contains(t, c.Recommendations, "Address all critical vulnerabilities within 24 hours")
}

func TestAssessCleanTarget(t *testing.T) {
	c := Assess(nil)

	assert.Equal(t, 100.0, c.OverallScore)
	assert.Zero(t, c.Total)
	assert.Equal(t, 100.0, c.Frameworks["owasp_top_10"].Score)
	assert.Empty(t, c.Frameworks["pci_dss"].Issues)
}

func TestAssessScoreFloorsAtZero(t *testing.T) {
	var vulns []Vulnerability
	for i := 0; i < 6; i++ {
		vulns = append(vulns, Vulnerability{Severity: SeverityCritical, Category: "configuration"})
	}
	c := Assess(vulns)
	assert.Equal(t, 0.0, c.OverallScore)
	assert.Equal(t, 0.0, c.Frameworks["pci_dss"].Score)
}

func TestWeightedScorer(t *testing.T) {
	vulns := Findings(ScanComprehensive)
	c := Assess(vulns)

	// (2 high * 0.3 + 2 medium * 0.1) * (1 - 0.29) * 10 = 5.68
	assert.Equal(t, 5.68, WeightedScorer{}.Score(vulns, c))
}

func TestWeightedScorerCapsAtTen(t *testing.T) {
	var vulns []Vulnerability
	for i := 0; i < 10; i++ {
		vulns = append(vulns, Vulnerability{Severity: SeverityHigh})
	}
	c := &Compliance{OverallScore: 0}
	assert.Equal(t, 10.0, WeightedScorer{}.Score(vulns, c))
}

func TestBuildReportSections(t *testing.T) {
	vulns := Findings(ScanComprehensive)
	c := Assess(vulns)

	report := BuildReport("api.example.com", vulns, c, "Summary of posture.")

	assert.Contains(t, report, "# Security Assessment Report")
	assert.Contains(t, report, "**Target:** api.example.com")
	assert.Contains(t, report, "Summary of posture.")
	assert.Contains(t, report, "### 1. SQL Injection")
	assert.Contains(t, report, "**OWASP_TOP_10:** 50% ❌ Non-Compliant")
	assert.Contains(t, report, "- Address Security Misconfiguration: Change default passwords immediately")
	assert.Contains(t, report, "- Resolve SQL Injection")
	assert.Contains(t, report, "Long-term Actions")
}

func TestProcessComprehensiveScan(t *testing.T) {
	notifier := &fakeNotifier{}
	s := newTestService(t, &fakeProvider{content: "LLM analysis of findings", tokens: 90}, notifier)

	resp := s.Process(context.Background(), Request{Target: "api.example.com"})

	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, "api.example.com", resp.Target)
	assert.Equal(t, 5, resp.VulnerabilitiesFound)
	assert.Equal(t, 29.0, resp.ComplianceScore)
	assert.Equal(t, 5.68, resp.RiskScore)
	assert.Contains(t, resp.Report, "api.example.com")
	assert.Contains(t, resp.Recommendations, "Immediately address high-severity vulnerabilities")
	assert.Contains(t, resp.Recommendations, "Improve compliance posture to meet industry standards")
	require.Len(t, resp.Findings, 5)
	assert.Equal(t, "LLM analysis of findings", resp.Findings[0].Analysis)

	assert.Equal(t, []string{securityChannel}, notifier.channels)
	assert.Contains(t, notifier.messages[0], "Overall Score: 29%")
}

func TestProcessDefaultsScanType(t *testing.T) {
	s := newTestService(t, &fakeProvider{content: "ok"}, &fakeNotifier{})

	resp := s.Process(context.Background(), Request{Target: "repo"})
	require.True(t, resp.Success)
	assert.Equal(t, 5, resp.VulnerabilitiesFound)
}

func TestProcessRequiresTarget(t *testing.T) {
	s := newTestService(t, &fakeProvider{}, &fakeNotifier{})

	resp := s.Process(context.Background(), Request{})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "target is required")
}

func TestProcessLLMFailure(t *testing.T) {
	s := newTestService(t, &fakeProvider{err: errors.New("model offline")}, &fakeNotifier{})

	resp := s.Process(context.Background(), Request{Target: "x"})
	assert.False(t, resp.Success)
	assert.Contains(t, resp.Error, "model offline")
}

func TestProcessRecordsBothCompletions(t *testing.T) {
	recorder := &fakeRecorder{}
	s := newTestService(t, &fakeProvider{content: "ok", tokens: 40}, &fakeNotifier{},
		WithRecorder(recorder))

	s.Process(context.Background(), Request{Target: "x"})

	// Scan and report steps each consume one completion.
	assert.Equal(t, int64(1), recorder.requests)
	assert.Equal(t, int64(80), recorder.tokens)
}
