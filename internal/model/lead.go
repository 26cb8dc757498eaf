package model

import "time"

// Answers maps canonical form-field labels to submitted values.
// Missing fields are empty strings, never absent keys. Built once per
// request and treated as immutable afterward.
type Answers map[string]string

// Canonical answer labels.
const (
	FieldCompanyName = "Company Name"
	FieldEmail       = "Email Address"
	FieldCompanySize = "Company Size"
	FieldSeats       = "Number of Seats"
	FieldComputers   = "Computers"
	FieldWebsite     = "Website"
)

// DecisionStatus is the advisory verdict from a qualitative provider.
type DecisionStatus string

const (
	DecisionApproved DecisionStatus = "approved"
	DecisionRejected DecisionStatus = "rejected"
	DecisionUnsure   DecisionStatus = "unsure"
)

// AiDecision is an advisory, non-deterministic signal. A nil *AiDecision
// means the provider did not run or crashed.
type AiDecision struct {
	Status DecisionStatus `json:"status"`
	Reason string         `json:"reason"`
}

// CompanyEnrichment holds provider-sourced company signals. A nil pointer
// field means the provider had no answer, which is distinct from
// "not yet fetched".
type CompanyEnrichment struct {
	Name               string   `json:"name,omitempty"`
	Sector             string   `json:"sector,omitempty"`
	Size               string   `json:"size,omitempty"`
	Type               string   `json:"type,omitempty"`
	EmployeeCount      *float64 `json:"employee_count"`
	TotalFundingRaised *float64 `json:"total_funding_raised"`
}

// Derived holds values computed once from the raw answers.
type Derived struct {
	Email       string `json:"email,omitempty"`
	Domain      string `json:"domain,omitempty"`
	Website     string `json:"website,omitempty"`
	CompanyName string `json:"company_name,omitempty"`
	Seats       *int   `json:"seats"`
	CompanySize string `json:"company_size,omitempty"`
	Computers   string `json:"computers,omitempty"`
}

// EnrichedResult is the merge point for all provider outputs. It is owned
// by a single request and discarded after the response; values worth
// persisting are cached separately, keyed by domain.
type EnrichedResult struct {
	Company    *CompanyEnrichment `json:"company_enrichment"`
	AiDecision *AiDecision        `json:"ai_decision"`
	Derived    Derived            `json:"derived"`
	Debug      map[string]string  `json:"debug,omitempty"`
}

// QualificationResult is the terminal artifact of scoring. Reason is part
// of the contract: it is echoed to logs, webhooks, and downstream systems
// and must always be human-readable and non-empty.
type QualificationResult struct {
	Approved bool   `json:"result"`
	Reason   string `json:"reason"`
}

// WorkspaceCriteria holds a tenant's qualification thresholds. All are
// optional; a workspace with no criteria configured never qualifies anyone
// via the deterministic rules.
type WorkspaceCriteria struct {
	MinEmployees  *float64 `json:"min_employees,omitempty"`
	MinFundingUSD *float64 `json:"min_funding_usd,omitempty"`
	MinRevenueUSD *float64 `json:"min_revenue_usd,omitempty"`
}

// Workspace is a tenant's configuration bundle.
type Workspace struct {
	Name            string             `json:"workspace_name"`
	Criteria        *WorkspaceCriteria `json:"criteria,omitempty"`
	BookingURL      string             `json:"booking_url,omitempty"`
	FallbackURL     string             `json:"success_page_url,omitempty"`
	SlackWebhookURL string             `json:"slack_webhook_url,omitempty"`
	CreatedAt       time.Time          `json:"created_at,omitzero"`
	UpdatedAt       time.Time          `json:"updated_at,omitzero"`
}

// AnalyticsEvent records one qualification outcome for reporting.
// Writes are fire-and-forget; failures are swallowed.
type AnalyticsEvent struct {
	ID            string              `json:"id"`
	Event         string              `json:"event"`
	Email         string              `json:"email"`
	Domain        string              `json:"domain"`
	WorkspaceName string              `json:"workspace_name"`
	Qualified     QualificationResult `json:"qualified"`
	TS            time.Time           `json:"ts"`
	Employees     *float64            `json:"employees,omitempty"`
	Funding       *float64            `json:"funding,omitempty"`
	Sector        string              `json:"sector,omitempty"`
	Size          string              `json:"size,omitempty"`
}

// Float returns a pointer to v, for building optional numeric fields.
func Float(v float64) *float64 { return &v }

// Int returns a pointer to v.
func Int(v int) *int { return &v }
