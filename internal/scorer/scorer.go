// Package scorer turns a merged enrichment result into a qualification
// verdict. The deterministic thresholds are the primary gate; the
// advisory verdict is secondary and only trusted when its stated reason
// carries machine-checkable evidence.
package scorer

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/eccleston-labs/tally-enricher/internal/model"
	"github.com/eccleston-labs/tally-enricher/internal/money"
)

// Signals that auto-qualify regardless of thresholds.
const (
	enterpriseSizeBucket = "10001+"
	publicCompanyType    = "public"
)

// sourceParenRe matches a parenthesized token containing a domain-like
// string, e.g. "(acme.com)" or "(10-K, sec.gov)".
var sourceParenRe = regexp.MustCompile(`(?i)\([^)]*[a-z0-9-]+\.[a-z]{2,}[^)]*\)`)

// ScoreLead applies the qualification policy. Exactly one deterministic
// threshold needs to pass (logical OR, a floor rather than a weighted
// score). Missing data degrades to not-qualified, never to an error,
// and the reason string is always non-empty.
func ScoreLead(enriched *model.EnrichedResult, criteria *model.WorkspaceCriteria) model.QualificationResult {
	if enriched == nil {
		return model.QualificationResult{Approved: false, Reason: "no enrichment data"}
	}
	if enriched.Derived.Domain == "" {
		return model.QualificationResult{Approved: false, Reason: "no domain derivable from submission"}
	}

	company := enriched.Company

	if criteria != nil && company != nil {
		if criteria.MinEmployees != nil && company.EmployeeCount != nil &&
			*company.EmployeeCount >= *criteria.MinEmployees {
			return model.QualificationResult{
				Approved: true,
				Reason:   fmt.Sprintf("employee count %.0f meets minimum %.0f", *company.EmployeeCount, *criteria.MinEmployees),
			}
		}
		if criteria.MinFundingUSD != nil && company.TotalFundingRaised != nil &&
			*company.TotalFundingRaised >= *criteria.MinFundingUSD {
			return model.QualificationResult{
				Approved: true,
				Reason:   fmt.Sprintf("total funding $%.0f meets minimum $%.0f", *company.TotalFundingRaised, *criteria.MinFundingUSD),
			}
		}
	}

	if company != nil && company.Type == publicCompanyType {
		return model.QualificationResult{
			Approved: true,
			Reason:   "publicly traded company",
		}
	}

	if company != nil && company.Size == enterpriseSizeBucket {
		return model.QualificationResult{
			Approved: true,
			Reason:   "company size " + enterpriseSizeBucket,
		}
	}

	decision := enriched.AiDecision
	if decision != nil && decision.Status == model.DecisionApproved && evidenceBacked(decision.Reason) {
		return model.QualificationResult{Approved: true, Reason: decision.Reason}
	}

	return model.QualificationResult{
		Approved: false,
		Reason:   "not qualified: " + strings.Join(failureSignals(company, criteria, decision), "; "),
	}
}

// evidenceBacked reports whether an advisory approval reason can be
// independently verified: it must name a source in parentheses and carry
// either a money figure or an explicit press-volume phrase. A bare
// "approved" never flips the decision; this guards against the advisory
// adapter degrading to hallucinated approvals.
func evidenceBacked(reason string) bool {
	if !sourceParenRe.MatchString(reason) {
		return false
	}
	if money.HasCurrencyFigure(reason) {
		return true
	}
	return strings.Contains(strings.ToLower(reason), "reputable articles")
}

// failureSignals enumerates what was available and what was missed, for
// the rejection reason relied on downstream.
func failureSignals(company *model.CompanyEnrichment, criteria *model.WorkspaceCriteria, decision *model.AiDecision) []string {
	var signals []string

	if company == nil {
		signals = append(signals, "no company data")
	} else {
		if company.EmployeeCount == nil {
			signals = append(signals, "no employee count")
		} else {
			signals = append(signals, fmt.Sprintf("%.0f employees below threshold", *company.EmployeeCount))
		}
		if company.TotalFundingRaised == nil {
			signals = append(signals, "no funding data")
		} else {
			signals = append(signals, fmt.Sprintf("$%.0f funding below threshold", *company.TotalFundingRaised))
		}
	}

	if criteria == nil || (criteria.MinEmployees == nil && criteria.MinFundingUSD == nil) {
		signals = append(signals, "no thresholds configured")
	}

	switch {
	case decision == nil:
		signals = append(signals, "no advisory verdict")
	case decision.Status == model.DecisionApproved:
		signals = append(signals, "advisory approved without verifiable evidence")
	default:
		signals = append(signals, "advisory "+string(decision.Status))
	}

	return signals
}
