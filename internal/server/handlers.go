package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eccleston-labs/tally-enricher/internal/dispatch"
	"github.com/eccleston-labs/tally-enricher/internal/model"
	"github.com/eccleston-labs/tally-enricher/internal/normalize"
	"github.com/eccleston-labs/tally-enricher/internal/scorer"
	"github.com/eccleston-labs/tally-enricher/pkg/slack"
)

// outcome bundles everything one qualification run produces.
type outcome struct {
	Workspace *model.Workspace
	Enriched  *model.EnrichedResult
	Decision  model.QualificationResult
}

// lookupWorkspace reads through the cache to the store. Store errors are
// logged and treated as not-found; the caller decides how to degrade.
func (s *Server) lookupWorkspace(ctx context.Context, name string) *model.Workspace {
	if name == "" {
		return nil
	}
	if ws := s.cache.GetWorkspace(ctx, name); ws != nil {
		return ws
	}
	ws, err := s.store.GetWorkspace(ctx, name)
	if err != nil {
		s.log.Warn("workspace lookup failed", zap.String("workspace", name), zap.Error(err))
		return nil
	}
	if ws != nil {
		s.cache.SetWorkspace(ctx, ws)
	}
	return ws
}

// qualify runs the full pipeline for one submission: enrich, score
// against the workspace criteria, then fire the side effects. The
// workspace may be nil; scoring then has no thresholds to satisfy.
func (s *Server) qualify(ctx context.Context, answers model.Answers, workspaceName string) outcome {
	overall := time.Duration(s.cfg.Enrich.OverallTimeoutSecs) * time.Second
	if overall <= 0 {
		overall = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, overall)
	defer cancel()

	ws := s.lookupWorkspace(ctx, workspaceName)
	var criteria *model.WorkspaceCriteria
	if ws != nil {
		criteria = ws.Criteria
	}

	enriched := s.orch.EnrichAll(ctx, answers, criteria)
	decision := scorer.ScoreLead(enriched, criteria)

	out := outcome{Workspace: ws, Enriched: enriched, Decision: decision}
	s.sideEffects(ws, enriched, decision, workspaceName)
	return out
}

// sideEffects fans out the fire-and-forget work: the analytics row, the
// Slack notification for qualified leads, and the results webhook. None
// of these can fail the request.
func (s *Server) sideEffects(ws *model.Workspace, enriched *model.EnrichedResult, decision model.QualificationResult, workspaceName string) {
	ev := model.AnalyticsEvent{
		ID:            uuid.New().String(),
		Event:         "lead_qualification",
		Email:         enriched.Derived.Email,
		Domain:        enriched.Derived.Domain,
		WorkspaceName: workspaceName,
		Qualified:     decision,
		TS:            time.Now().UTC(),
	}
	if enriched.Company != nil {
		ev.Employees = enriched.Company.EmployeeCount
		ev.Funding = enriched.Company.TotalFundingRaised
		ev.Sector = enriched.Company.Sector
		ev.Size = enriched.Company.Size
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.store.InsertAnalytics(ctx, ev); err != nil {
			s.log.Warn("analytics insert failed", zap.Error(err))
		}
	}()

	if decision.Approved && s.slack != nil {
		hook := s.cfg.Slack.WebhookURL
		if ws != nil && ws.SlackWebhookURL != "" {
			hook = ws.SlackWebhookURL
		}
		if hook != "" {
			// enriched name first, then what the form said, then the domain
			name := ""
			if enriched.Company != nil {
				name = enriched.Company.Name
			}
			if name == "" {
				name = enriched.Derived.CompanyName
			}
			if name == "" {
				name = enriched.Derived.Domain
			}
			msg := slack.Message{Text: fmt.Sprintf("%s was just qualified 🎉", name)}
			go func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := s.slack.Post(ctx, hook, msg); err != nil {
					s.log.Warn("slack notification failed", zap.Error(err))
				}
			}()
		}
	}

	if s.dispatcher != nil && s.cfg.Clay.WebhookURL != "" {
		s.dispatcher.Enqueue(dispatch.Delivery{
			Name: "clay",
			URL:  s.cfg.Clay.WebhookURL,
			Payload: map[string]any{
				"email":     enriched.Derived.Email,
				"domain":    enriched.Derived.Domain,
				"workspace": workspaceName,
				"qualified": decision,
				"company":   enriched.Company,
			},
			Opts: dispatch.PostOptions{
				Timeout:    time.Duration(s.cfg.Dispatch.TimeoutSecs) * time.Second,
				Retries:    s.cfg.Dispatch.MaxAttempts - 1,
				RetryDelay: time.Duration(s.cfg.Dispatch.BackoffMsecs) * time.Millisecond,
			},
		})
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

type qualifyRequest struct {
	Email         string `json:"email"`
	WorkspaceName string `json:"workspaceName"`
	// snake_case alias accepted for parity with the query params
	WorkspaceNameAlt string `json:"workspace_name"`
}

func (s *Server) handleQualify(w http.ResponseWriter, r *http.Request) {
	var req qualifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.WorkspaceName == "" {
		req.WorkspaceName = req.WorkspaceNameAlt
	}
	if req.Email == "" || req.WorkspaceName == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "email and workspace_name are required"})
		return
	}
	if s.lookupWorkspace(r.Context(), req.WorkspaceName) == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "workspace not found"})
		return
	}

	answers := model.Answers{model.FieldEmail: req.Email}
	out := s.qualify(r.Context(), answers, req.WorkspaceName)
	writeJSON(w, http.StatusOK, out.Decision)
}

type webhookResponse struct {
	OK       bool                      `json:"ok"`
	SID      string                    `json:"sid"`
	Decision model.QualificationResult `json:"decision"`
	Enriched webhookEnriched           `json:"enriched"`
}

type webhookEnriched struct {
	Derived           model.Derived            `json:"derived"`
	CompanyEnrichment *model.CompanyEnrichment `json:"companyEnrichment"`
	Debug             map[string]string        `json:"debug,omitempty"`
}

func (s *Server) handleTallyWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "unreadable body"})
		return
	}
	sid, answers, err := normalize.FromTallyWebhook(body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid webhook payload"})
		return
	}
	if sid == "" {
		sid = uuid.New().String()
	}

	out := s.qualify(r.Context(), answers, r.URL.Query().Get("workspace_name"))
	writeJSON(w, http.StatusOK, webhookResponse{
		OK:       true,
		SID:      sid,
		Decision: out.Decision,
		Enriched: webhookEnriched{
			Derived:           out.Enriched.Derived,
			CompanyEnrichment: out.Enriched.Company,
			Debug:             out.Enriched.Debug,
		},
	})
}

// handleRedirect qualifies the lead and 302s to the workspace booking
// page or the fallback page. Everything that goes wrong routes to the
// fallback; a form visitor never sees an error page from this endpoint.
func (s *Server) handleRedirect(w http.ResponseWriter, r *http.Request) {
	email := r.URL.Query().Get("email")
	workspaceName := r.URL.Query().Get("workspace_name")

	const lastResort = "https://tally.so"

	if email == "" || workspaceName == "" {
		http.Redirect(w, r, lastResort, http.StatusFound)
		return
	}

	ws := s.lookupWorkspace(r.Context(), workspaceName)
	if ws == nil {
		http.Redirect(w, r, lastResort, http.StatusFound)
		return
	}

	answers := model.Answers{model.FieldEmail: email}
	out := s.qualify(r.Context(), answers, workspaceName)

	fallback := normalize.NormalizeDestination(ws.FallbackURL, lastResort)
	dest := fallback
	if out.Decision.Approved {
		dest = normalize.NormalizeDestination(ws.BookingURL, fallback)
	}
	http.Redirect(w, r, dest, http.StatusFound)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
