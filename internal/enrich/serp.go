package enrich

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/eccleston-labs/tally-enricher/internal/model"
	"github.com/eccleston-labs/tally-enricher/internal/money"
	"github.com/eccleston-labs/tally-enricher/pkg/serpapi"
)

// SerpOptions tunes the search-signal adapter.
type SerpOptions struct {
	MaxQueries    int
	MinRevenueUSD float64
	RecencyYears  int
	Budget        time.Duration
	PerQuery      time.Duration
}

// DefaultSerpOptions returns the production defaults.
func DefaultSerpOptions() SerpOptions {
	return SerpOptions{
		MaxQueries:    3,
		MinRevenueUSD: 50_000_000,
		RecencyYears:  3,
		Budget:        9 * time.Second,
		PerQuery:      2500 * time.Millisecond,
	}
}

// Serp is the search-signal adapter. It scans Google results for a
// money figure co-located with a revenue keyword, attributable to the
// subject company, and turns it into an advisory decision.
type Serp struct {
	client serpapi.Client
	opts   SerpOptions
	now    func() time.Time
}

// NewSerp creates the search-signal adapter. A missing API key is a
// constructor error for this adapter only.
func NewSerp(apiKey string, opts SerpOptions, clientOpts ...serpapi.Option) (*Serp, error) {
	if apiKey == "" {
		return nil, eris.New("enrich: serp api key not configured")
	}
	return &Serp{
		client: serpapi.NewClient(apiKey, clientOpts...),
		opts:   opts,
		now:    time.Now,
	}, nil
}

func (a *Serp) Name() string { return "serp" }

// serpHit is one attributed revenue figure found in the results.
type serpHit struct {
	valueUSD float64
	snippet  string
	source   string
	year     int
}

// Fetch runs a small fixed query set under a shared time budget and
// decides from the collected hits.
func (a *Serp) Fetch(ctx context.Context, sub Subject) Partial {
	if sub.Domain == "" {
		return Partial{Decision: &model.AiDecision{Status: model.DecisionUnsure, Reason: "No domain provided."}}
	}

	queries := []string{
		sub.Domain + " revenue",
		sub.Domain + " ARR",
		sub.Domain + " annual revenue",
	}
	if len(queries) > a.opts.MaxQueries {
		queries = queries[:a.opts.MaxQueries]
	}

	log := zap.L().Named("serp").With(zap.String("domain", sub.Domain))
	deadline := time.Now().Add(a.opts.Budget)
	cutoff := a.now().Year() - a.opts.RecencyYears
	floor := a.opts.MinRevenueUSD
	if sub.MinRevenueUSD != nil {
		floor = *sub.MinRevenueUSD
	}

	var hits []serpHit
	var lastErr string

	for _, q := range queries {
		timeLeft := time.Until(deadline)
		if timeLeft <= 150*time.Millisecond {
			break
		}
		reqTimeout := a.opts.PerQuery
		if timeLeft < reqTimeout {
			reqTimeout = timeLeft
		}

		qCtx, cancel := context.WithTimeout(ctx, reqTimeout)
		resp, err := a.client.Search(qCtx, q)
		cancel()
		if err != nil {
			log.Warn("query failed", zap.String("query", q), zap.Error(err))
			lastErr = err.Error()
			continue
		}

		newHits, decided := a.scan(sub, resp, cutoff, floor)
		hits = append(hits, newHits...)
		if decided != nil {
			return Partial{Decision: decided}
		}
	}

	if len(hits) == 0 {
		if lastErr != "" {
			return Partial{Err: lastErr}
		}
		return Partial{Decision: &model.AiDecision{
			Status: model.DecisionUnsure,
			Reason: "No reputable revenue figure found via search.",
		}}
	}

	// Newest year first, then largest figure.
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].year != hits[j].year {
			return hits[i].year > hits[j].year
		}
		return hits[i].valueUSD > hits[j].valueUSD
	})

	top := hits[0]
	for _, h := range hits {
		if h.year == 0 || h.year >= cutoff {
			top = h
			break
		}
	}

	if top.valueUSD >= floor && (top.year == 0 || top.year >= cutoff) {
		return Partial{Decision: &model.AiDecision{
			Status: model.DecisionApproved,
			Reason: approvalReason(top),
		}}
	}
	return Partial{Decision: &model.AiDecision{
		Status: model.DecisionUnsure,
		Reason: fmt.Sprintf("Found revenue signal but < $%s or stale%s (%s)",
			groupDigits(floor), yearSuffix(top.year), top.source),
	}}
}

// scan extracts attributed revenue hits from one response. It returns
// early with an approval when a hit clears both the floor and the
// recency cutoff.
func (a *Serp) scan(sub Subject, resp *serpapi.SearchResponse, cutoff int, floor float64) ([]serpHit, *model.AiDecision) {
	var hits []serpHit

	consider := func(text, host string) *model.AiDecision {
		if !money.ImpliesRevenue(text) {
			return nil
		}
		amt, ok := money.Parse(text)
		if !ok {
			return nil
		}
		val, usd := amt.USD()
		if !usd {
			return nil
		}
		if !a.attributed(sub, host, text) {
			return nil
		}
		source := host
		if source == "" {
			source = "google.com"
		}
		hit := serpHit{valueUSD: val, snippet: clip(text, 300), source: source, year: money.Year(text)}
		hits = append(hits, hit)
		if val >= floor && (hit.year == 0 || hit.year >= cutoff) {
			return &model.AiDecision{Status: model.DecisionApproved, Reason: approvalReason(hit)}
		}
		return nil
	}

	// Knowledge graph panel. Keyed loosely; include the panel title so
	// the attribution check can see the company name.
	if kg := resp.KnowledgeGraph; kg != nil {
		rev, _ := kg["revenue"].(string)
		if rev == "" {
			rev, _ = kg["Revenue"].(string)
		}
		if rev != "" {
			title, _ := kg["title"].(string)
			if d := consider(strings.TrimSpace(title+" revenue "+rev), ""); d != nil {
				return hits, d
			}
		}
	}

	for _, c := range resp.AnswerBox.Candidates() {
		if d := consider(c, ""); d != nil {
			return hits, d
		}
	}

	for _, r := range resp.OrganicResults {
		parts := []string{r.Title, r.Snippet}
		if ext := r.Extensions(); len(ext) > 0 {
			parts = append(parts, strings.Join(ext, " • "))
		}
		text := strings.Join(nonEmpty(parts), " — ")
		if text == "" {
			continue
		}
		link := r.Link
		if link == "" {
			link = r.DisplayedLink
		}
		if link == "" {
			link = r.Source
		}
		if d := consider(text, hostFromURL(link)); d != nil {
			return hits, d
		}
	}

	return hits, nil
}

// attributed rejects figures that cannot be traced to the subject: the
// hosting page must be on the queried domain, or the text must mention
// the domain or the company name (whitespace-insensitive). A number on
// an unrelated page is never attributed to the subject company.
func (a *Serp) attributed(sub Subject, host, text string) bool {
	domain := strings.ToLower(sub.Domain)
	if host != "" && (host == domain || strings.HasSuffix(host, "."+domain)) {
		return true
	}
	lower := strings.ToLower(text)
	if domain != "" && strings.Contains(lower, domain) {
		return true
	}
	if sub.CompanyName != "" {
		if strings.Contains(squash(text), squash(sub.CompanyName)) {
			return true
		}
	}
	return false
}

func squash(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), "")
}

func hostFromURL(u string) string {
	if u == "" {
		return ""
	}
	if !strings.HasPrefix(u, "http://") && !strings.HasPrefix(u, "https://") {
		u = "https://" + u
	}
	parsed, err := url.Parse(u)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}

func approvalReason(h serpHit) string {
	return fmt.Sprintf("Revenue ≈ $%s%s (%s)", groupDigits(h.valueUSD), yearSuffix(h.year), h.source)
}

func yearSuffix(year int) string {
	if year == 0 {
		return ""
	}
	return fmt.Sprintf(" (%d)", year)
}

// groupDigits renders a rounded amount with comma grouping.
func groupDigits(v float64) string {
	s := strconv.FormatInt(int64(v+0.5), 10)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, r := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

func nonEmpty(parts []string) []string {
	out := parts[:0]
	for _, p := range parts {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func clip(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
