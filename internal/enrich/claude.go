package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"github.com/eccleston-labs/tally-enricher/internal/model"
	"github.com/eccleston-labs/tally-enricher/pkg/claude"
)

// ClaudeOptions tunes the qualitative evaluator.
type ClaudeOptions struct {
	Model         string
	MaxTokens     int64
	MinRevenueUSD float64
	MinArticles   int
	Timeout       time.Duration
}

// DefaultClaudeOptions returns the production defaults. The revenue
// floor here is deliberately lower than the search adapter's: the model
// is asked for cited evidence, and the scorer re-checks the citation.
func DefaultClaudeOptions() ClaudeOptions {
	return ClaudeOptions{
		Model:         "claude-sonnet-4-5-20250929",
		MaxTokens:     256,
		MinRevenueUSD: 10_000_000,
		MinArticles:   5,
		Timeout:       9 * time.Second,
	}
}

// Claude is the qualitative evaluator adapter. It asks the model for a
// strict-JSON verdict based on revenue and press evidence only.
type Claude struct {
	client claude.Client
	opts   ClaudeOptions
}

// NewClaude creates the qualitative adapter. A missing API key is a
// constructor error for this adapter only.
func NewClaude(apiKey string, opts ClaudeOptions) (*Claude, error) {
	if apiKey == "" {
		return nil, eris.New("enrich: anthropic api key not configured")
	}
	return &Claude{client: claude.NewClient(apiKey), opts: opts}, nil
}

func (a *Claude) Name() string { return "claude" }

const evaluatorSystem = "Only output valid JSON. Do not include markdown, code fences, or any extra text."

// evaluatorPrompt instructs the model to judge on revenue and press
// volume only. Headcount and funding are excluded so the advisory
// signal stays independent of the structured lookup.
func (a *Claude) evaluatorPrompt(domain string) string {
	return fmt.Sprintf(`You are a conservative evaluator. You MAY browse the web.
Use ONLY revenue information and reputable press volume. IGNORE headcount and funding.

Decision rubric (STRICT):
- APPROVE if you can cite a reputable source that states the company's annual revenue (ARR or fiscal revenue) is >= $%s USD, with a date.
- APPROVE if you find strong press volume: at least %d distinct reputable outlets (e.g., Bloomberg, WSJ, FT, CNBC, TechCrunch, The Verge, company IR/10-K) in the last 12 months, AND at least one mentions paying customers, revenue scale, or commercial traction. Still IGNORE employee counts and funding.
- REJECT if sources indicate it is a non-profit, personal site, student project, parked domain, or no evidence of commercial revenue/traction.
- UNSURE if you cannot find reputable, recent sources about revenue or commercial traction.

Search protocol:
1) Try: "%s revenue", "%s ARR", "site:%s investors", "%s 10-k", "%s press".
2) Prefer primary sources (10-K/IR) and high-quality media. Avoid wikis without citations, low-quality blogs, AI-written sites.
3) Extract the most recent figures and include month/year.

Output format (critical):
Respond ONLY in strict JSON:
{
  "status": "approved | rejected | unsure",
  "reason": "max 2 sentences, include at least one quantitative revenue/traction signal OR the phrase '>= %d reputable articles (past 12 months)', and include the primary source domain(s) in parentheses."
}

Do not mention headcount or funding. Do not guess. If uncertain, return "unsure".

Input domain: %s`,
		groupDigits(a.opts.MinRevenueUSD), a.opts.MinArticles,
		domain, domain, domain, domain, domain,
		a.opts.MinArticles, domain)
}

// Fetch asks the model for a verdict. Responses that fail to parse as
// one of the three allowed statuses degrade to unsure, never to an
// error: the advisory signal is optional by design.
func (a *Claude) Fetch(ctx context.Context, sub Subject) Partial {
	ctx, cancel := context.WithTimeout(ctx, a.opts.Timeout)
	defer cancel()

	resp, err := a.client.CreateMessage(ctx, claude.MessageRequest{
		Model:     a.opts.Model,
		MaxTokens: a.opts.MaxTokens,
		System:    evaluatorSystem,
		Messages: []claude.Message{
			{Role: "user", Content: a.evaluatorPrompt(sub.Domain)},
		},
	})
	if err != nil {
		return Partial{Err: err.Error()}
	}
	return Partial{Decision: parseDecision(resp.Text)}
}

func parseDecision(text string) *model.AiDecision {
	if text == "" {
		return &model.AiDecision{Status: model.DecisionUnsure, Reason: "Empty response from model."}
	}

	var parsed struct {
		Status string `json:"status"`
		Reason string `json:"reason"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		return &model.AiDecision{Status: model.DecisionUnsure, Reason: "Model did not return parseable JSON."}
	}

	switch status := model.DecisionStatus(strings.ToLower(parsed.Status)); status {
	case model.DecisionApproved, model.DecisionRejected, model.DecisionUnsure:
		return &model.AiDecision{Status: status, Reason: parsed.Reason}
	}
	return &model.AiDecision{Status: model.DecisionUnsure, Reason: "Non-conforming status from model."}
}
