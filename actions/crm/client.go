// Package crm integrates with a Salesforce-style CRM for lead, opportunity,
// and contact operations. Without an access token the client runs in
// degraded mode: every call succeeds with deterministic placeholder records
// so downstream workflows keep working in demos and tests.
package crm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/branchline/agentmesh/config"
	"github.com/branchline/agentmesh/types"
)

const (
	collaborator = "crm"
	apiVersion   = "v58.0"

	// Degraded-mode record IDs, stable across runs.
	placeholderLeadID        = "00Q1234567890ABCDE"
	placeholderOpportunityID = "0061234567890ABCDE"
	placeholderContactID     = "0031234567890ABCDE"
	placeholderAccountID     = "0011234567890ABCDE"
	placeholderInstanceURL   = "https://demo.salesforce.com"
)

// Lead is the input to CreateLead.
type Lead struct {
	FirstName string `json:"FirstName"`
	LastName  string `json:"LastName"`
	Email     string `json:"Email"`
	Company   string `json:"Company"`
	Source    string `json:"LeadSource"`
}

// Opportunity is the input to CreateOpportunity.
type Opportunity struct {
	Name      string  `json:"Name"`
	AccountID string  `json:"AccountId"`
	Stage     string  `json:"StageName"`
	Amount    float64 `json:"Amount,omitempty"`
	CloseDate string  `json:"CloseDate"`
}

// Record is the result of a create call.
type Record struct {
	ID      string `json:"id"`
	Success bool   `json:"success"`
	URL     string `json:"url"`
}

// Contact is one CRM contact returned by SearchContacts.
type Contact struct {
	ID        string `json:"Id"`
	FirstName string `json:"FirstName"`
	LastName  string `json:"LastName"`
	Email     string `json:"Email"`
	AccountID string `json:"AccountId"`
}

// Client is a CRM API client. Construct with New; the zero value is not
// usable.
type Client struct {
	cfg        config.CRMConfig
	httpClient *http.Client
	logger     *zap.Logger
}

// New creates a CRM client from configuration.
func New(cfg config.CRMConfig, logger *zap.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger.With(zap.String("component", "crm_client")),
	}
}

// Degraded reports whether the client runs without credentials.
func (c *Client) Degraded() bool { return !c.cfg.Configured() }

func (c *Client) instanceURL() string {
	if c.cfg.InstanceURL != "" {
		return strings.TrimRight(c.cfg.InstanceURL, "/")
	}
	return placeholderInstanceURL
}

// CreateLead creates a lead record. Leads default to status
// "Open - Not Contacted".
func (c *Client) CreateLead(ctx context.Context, lead Lead) (*Record, error) {
	if c.Degraded() {
		c.logger.Warn("CRM access token not set, returning placeholder lead")
		return &Record{
			ID:      placeholderLeadID,
			Success: true,
			URL:     c.instanceURL() + "/" + placeholderLeadID,
		}, nil
	}

	payload := map[string]any{
		"FirstName":  lead.FirstName,
		"LastName":   lead.LastName,
		"Email":      lead.Email,
		"Company":    lead.Company,
		"LeadSource": lead.Source,
		"Status":     "Open - Not Contacted",
	}
	return c.createObject(ctx, "Lead", payload)
}

// CreateOpportunity creates an opportunity record.
func (c *Client) CreateOpportunity(ctx context.Context, opp Opportunity) (*Record, error) {
	if c.Degraded() {
		c.logger.Warn("CRM access token not set, returning placeholder opportunity")
		return &Record{
			ID:      placeholderOpportunityID,
			Success: true,
			URL:     c.instanceURL() + "/" + placeholderOpportunityID,
		}, nil
	}

	if opp.Stage == "" {
		opp.Stage = "Prospecting"
	}
	payload := map[string]any{
		"Name":      opp.Name,
		"AccountId": opp.AccountID,
		"StageName": opp.Stage,
		"CloseDate": opp.CloseDate,
	}
	if opp.Amount > 0 {
		payload["Amount"] = opp.Amount
	}
	return c.createObject(ctx, "Opportunity", payload)
}

// SearchContacts finds contacts by exact email match.
func (c *Client) SearchContacts(ctx context.Context, email string) ([]Contact, error) {
	if c.Degraded() {
		c.logger.Warn("CRM access token not set, returning placeholder contact")
		return []Contact{{
			ID:        placeholderContactID,
			FirstName: "John",
			LastName:  "Doe",
			Email:     email,
			AccountID: placeholderAccountID,
		}}, nil
	}

	query := fmt.Sprintf(
		"SELECT Id, FirstName, LastName, Email, AccountId FROM Contact WHERE Email = '%s'",
		strings.ReplaceAll(email, "'", "\\'"),
	)
	endpoint := fmt.Sprintf("%s/services/data/%s/query?q=%s",
		c.instanceURL(), apiVersion, url.QueryEscape(query))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to build contact query").WithCause(err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportErr("contact search failed", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, c.transportErr("failed to read contact search response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, c.statusErr(resp.StatusCode, "contact search rejected")
	}

	var parsed struct {
		Records []Contact `json:"records"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to decode contact search response").
			WithCause(err).WithCollaborator(collaborator)
	}
	return parsed.Records, nil
}

// FindContact returns the first contact matching email, or nil.
func (c *Client) FindContact(ctx context.Context, email string) (*Contact, error) {
	contacts, err := c.SearchContacts(ctx, email)
	if err != nil {
		return nil, err
	}
	if len(contacts) == 0 {
		return nil, nil
	}
	return &contacts[0], nil
}

// CreateLeadFromInquiry creates a lead from a free-form inquiry, splitting
// the full name on the first space. Returns the new lead ID.
func (c *Client) CreateLeadFromInquiry(ctx context.Context, name, email, company string) (string, error) {
	first, last := splitName(name)
	rec, err := c.CreateLead(ctx, Lead{
		FirstName: first,
		LastName:  last,
		Email:     email,
		Company:   company,
		Source:    "Website Inquiry",
	})
	if err != nil {
		return "", err
	}
	return rec.ID, nil
}

func (c *Client) createObject(ctx context.Context, object string, payload map[string]any) (*Record, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, types.NewError(types.ErrInvalidRequest, "failed to encode "+object).WithCause(err)
	}

	endpoint := fmt.Sprintf("%s/services/data/%s/sobjects/%s", c.instanceURL(), apiVersion, object)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, types.NewError(types.ErrInternalError, "failed to build "+object+" request").WithCause(err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.transportErr("failed to create "+object, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, c.transportErr("failed to read "+object+" response", err)
	}
	if resp.StatusCode != http.StatusCreated && resp.StatusCode != http.StatusOK {
		return nil, c.statusErr(resp.StatusCode, object+" creation rejected")
	}

	var parsed struct {
		ID      string `json:"id"`
		Success bool   `json:"success"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, types.NewError(types.ErrUpstreamError, "failed to decode "+object+" response").
			WithCause(err).WithCollaborator(collaborator)
	}

	c.logger.Info("CRM record created",
		zap.String("object", object),
		zap.String("id", parsed.ID),
	)

	return &Record{
		ID:      parsed.ID,
		Success: parsed.Success,
		URL:     c.instanceURL() + "/" + parsed.ID,
	}, nil
}

func (c *Client) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.cfg.AccessToken)
}

func (c *Client) transportErr(msg string, cause error) error {
	return types.NewError(types.ErrUpstreamError, msg).
		WithCause(cause).WithCollaborator(collaborator).WithRetryable(true)
}

func (c *Client) statusErr(status int, msg string) error {
	code := types.ErrUpstreamError
	retryable := status >= 500
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		code = types.ErrAuthentication
	case http.StatusNotFound:
		code = types.ErrNotFound
	case http.StatusTooManyRequests:
		code = types.ErrRateLimited
		retryable = true
	}
	return types.NewError(code, msg).
		WithHTTPStatus(status).WithCollaborator(collaborator).WithRetryable(retryable)
}

func splitName(name string) (first, last string) {
	parts := strings.SplitN(strings.TrimSpace(name), " ", 2)
	first = parts[0]
	if len(parts) > 1 {
		last = parts[1]
	}
	return first, last
}
