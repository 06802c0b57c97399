package mcp

import (
	"context"
	"fmt"
	"time"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"

	"interestsync/internal/audit"
	"interestsync/internal/config"
	"interestsync/internal/reconcile"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

type ListInterestsInput struct {
	SubjectID string `json:"subject_id,omitempty" jsonschema:"only interests expressed by this applicant"`
	ObjectID  string `json:"object_id,omitempty" jsonschema:"only interests in this proposal"`
	Status    string `json:"status,omitempty" jsonschema:"pendiente or aceptado"`
	Limit     int    `json:"limit,omitempty" jsonschema:"maximum number of results, default 50"`
}

type InterestStatsInput struct{}

type GetConfigInput struct{}

type AuditProposalsInput struct {
	ErrorsOnly bool `json:"errors_only,omitempty" jsonschema:"omit warning level issues"`
}

type InterestOutput struct {
	ID             string `json:"id"`
	SubjectID      string `json:"subject_id"`
	ObjectID       string `json:"object_id"`
	CounterpartyID string `json:"counterparty_id,omitempty"`
	DisplayTitle   string `json:"display_title"`
	DisplayName    string `json:"display_name"`
	Status         string `json:"status"`
	CreatedAt      string `json:"created_at,omitempty"`
}

type ListInterestsOutput struct {
	Interests []InterestOutput `json:"interests"`
}

type InterestStatsOutput struct {
	Total    int `json:"total"`
	Pending  int `json:"pending"`
	Accepted int `json:"accepted"`
	Other    int `json:"other"`
}

type ConfigOutput struct {
	Project      string              `json:"project"`
	Collections  map[string]string   `json:"collections"`
	Fields       map[string][]string `json:"fields"`
	Placeholders map[string]string   `json:"placeholders"`
}

type IssueOutput struct {
	Severity   string `json:"severity"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	DocumentID string `json:"document_id"`
	Title      string `json:"title,omitempty"`
}

type AuditProposalsOutput struct {
	Total           int            `json:"total"`
	Visible         []string       `json:"visible"`
	ByState         map[string]int `json:"by_state"`
	ByValidation    map[string]int `json:"by_validation"`
	WithCoordinates int            `json:"with_coordinates"`
	Issues          []IssueOutput  `json:"issues"`
}

func (s *Server) registerTools() {
	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "list_interests",
		Description: "List derived interests filtered by applicant, proposal, or status",
	}, s.handleListInterests)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "interest_stats",
		Description: "Count derived interests by status",
	}, s.handleInterestStats)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_config",
		Description: "Return the collections and field names reconciliation reads",
	}, s.handleGetConfig)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "audit_proposals",
		Description: "Report proposal states and data problems that affect interests",
	}, s.handleAuditProposals)
}

func (s *Server) handleListInterests(ctx context.Context, req *sdk.CallToolRequest, input ListInterestsInput) (*sdk.CallToolResult, ListInterestsOutput, error) {
	status := reconcile.Status(input.Status)
	switch status {
	case "", reconcile.StatusPending, reconcile.StatusAccepted:
	default:
		return nil, ListInterestsOutput{}, fmt.Errorf("unknown status %q", input.Status)
	}
	limit := input.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	interests, err := reconcile.ListInterests(ctx, s.db, s.cfg.Collections.Interests, input.SubjectID, input.ObjectID, status, limit)
	if err != nil {
		return nil, ListInterestsOutput{}, err
	}

	output := make([]InterestOutput, 0, len(interests))
	for _, interest := range interests {
		output = append(output, interestOutput(interest))
	}
	return nil, ListInterestsOutput{Interests: output}, nil
}

func (s *Server) handleInterestStats(ctx context.Context, req *sdk.CallToolRequest, input InterestStatsInput) (*sdk.CallToolResult, InterestStatsOutput, error) {
	summary, err := reconcile.Summarize(ctx, s.db, s.cfg.Collections.Interests)
	if err != nil {
		return nil, InterestStatsOutput{}, err
	}
	return nil, InterestStatsOutput{
		Total:    summary.Total,
		Pending:  summary.Pending,
		Accepted: summary.Accepted,
		Other:    summary.Other,
	}, nil
}

func (s *Server) handleGetConfig(ctx context.Context, req *sdk.CallToolRequest, input GetConfigInput) (*sdk.CallToolResult, ConfigOutput, error) {
	return nil, configOutput(s.cfg), nil
}

func (s *Server) handleAuditProposals(ctx context.Context, req *sdk.CallToolRequest, input AuditProposalsInput) (*sdk.CallToolResult, AuditProposalsOutput, error) {
	report, err := audit.Run(ctx, s.cfg, s.db)
	if err != nil {
		return nil, AuditProposalsOutput{}, err
	}

	out := AuditProposalsOutput{
		Total:           report.Counts.Total,
		Visible:         append([]string{}, report.Visible...),
		ByState:         report.Counts.ByState,
		ByValidation:    report.Counts.ByValidation,
		WithCoordinates: report.Counts.WithCoordinates,
		Issues:          make([]IssueOutput, 0, len(report.Issues)),
	}
	for _, issue := range report.Issues {
		if input.ErrorsOnly && issue.Severity != audit.SeverityError {
			continue
		}
		out.Issues = append(out.Issues, IssueOutput{
			Severity:   string(issue.Severity),
			Code:       issue.Code,
			Message:    issue.Message,
			DocumentID: issue.DocumentID,
			Title:      issue.Title,
		})
	}
	return nil, out, nil
}

func configOutput(cfg *config.ProjectConfig) ConfigOutput {
	if cfg == nil {
		return ConfigOutput{}
	}
	f := cfg.Fields
	return ConfigOutput{
		Project: cfg.Project,
		Collections: map[string]string{
			"events":      cfg.Collections.Events,
			"proposals":   cfg.Collections.Proposals,
			"owners":      cfg.Collections.Owners,
			"acceptances": cfg.Collections.Acceptances,
			"interests":   cfg.Collections.Interests,
		},
		Fields: map[string][]string{
			"event_subject":      f.EventSubject,
			"event_object":       f.EventObject,
			"event_counterparty": f.EventCounterparty,
			"event_timestamp":    f.EventTimestamp,
			"proposal_title":     f.ProposalTitle,
			"proposal_owner":     f.ProposalOwner,
			"owner_name":         f.OwnerName,
			"acceptance_subject": f.AcceptanceSubject,
			"acceptance_object":  f.AcceptanceObject,
		},
		Placeholders: map[string]string{
			"title":        cfg.Placeholders.Title,
			"display_name": cfg.Placeholders.DisplayName,
		},
	}
}

func interestOutput(interest reconcile.DerivedInterest) InterestOutput {
	out := InterestOutput{
		ID:             interest.ID,
		SubjectID:      interest.SubjectID,
		ObjectID:       interest.ObjectID,
		CounterpartyID: interest.CounterpartyID,
		DisplayTitle:   interest.DisplayTitle,
		DisplayName:    interest.DisplayName,
		Status:         string(interest.Status),
	}
	if !interest.CreatedAt.IsZero() {
		out.CreatedAt = interest.CreatedAt.Format(time.RFC3339)
	}
	return out
}
