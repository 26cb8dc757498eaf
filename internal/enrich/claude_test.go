package enrich

import (
	"context"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eccleston-labs/tally-enricher/internal/model"
	"github.com/eccleston-labs/tally-enricher/pkg/claude"
)

type stubClaude struct {
	text string
	err  error
	req  *claude.MessageRequest
}

func (s *stubClaude) CreateMessage(ctx context.Context, req claude.MessageRequest) (*claude.MessageResponse, error) {
	s.req = &req
	if s.err != nil {
		return nil, s.err
	}
	return &claude.MessageResponse{Text: s.text}, nil
}

func newTestClaude(client claude.Client) *Claude {
	return &Claude{client: client, opts: DefaultClaudeOptions()}
}

func TestClaude_ParsesStrictJSON(t *testing.T) {
	stub := &stubClaude{text: `{"status":"approved","reason":"Revenue $120M FY2025 (acme.com)"}`}

	part := newTestClaude(stub).Fetch(context.Background(), Subject{Domain: "acme.com"})

	require.Empty(t, part.Err)
	require.NotNil(t, part.Decision)
	assert.Equal(t, model.DecisionApproved, part.Decision.Status)
	assert.Equal(t, "Revenue $120M FY2025 (acme.com)", part.Decision.Reason)
}

func TestClaude_UppercaseStatusNormalized(t *testing.T) {
	stub := &stubClaude{text: `{"status":"REJECTED","reason":"Parked domain (godaddy.com)"}`}

	part := newTestClaude(stub).Fetch(context.Background(), Subject{Domain: "parked.example"})

	require.NotNil(t, part.Decision)
	assert.Equal(t, model.DecisionRejected, part.Decision.Status)
}

func TestClaude_DegradationTable(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		reason string
	}{
		{"empty response", "", "Empty response from model."},
		{"not json", "I think this company looks great!", "Model did not return parseable JSON."},
		{"markdown fenced", "```json\n{\"status\":\"approved\"}\n```", "Model did not return parseable JSON."},
		{"unknown status", `{"status":"maybe","reason":"?"}`, "Non-conforming status from model."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			part := newTestClaude(&stubClaude{text: tt.text}).Fetch(context.Background(), Subject{Domain: "acme.com"})

			require.NotNil(t, part.Decision)
			assert.Equal(t, model.DecisionUnsure, part.Decision.Status)
			assert.Equal(t, tt.reason, part.Decision.Reason)
		})
	}
}

func TestClaude_TransportErrorBecomesDebug(t *testing.T) {
	stub := &stubClaude{err: eris.New("connection refused")}

	part := newTestClaude(stub).Fetch(context.Background(), Subject{Domain: "acme.com"})

	assert.Nil(t, part.Decision)
	assert.Contains(t, part.Err, "connection refused")
}

func TestClaude_PromptScopesEvidence(t *testing.T) {
	stub := &stubClaude{text: `{"status":"unsure","reason":"n/a"}`}

	newTestClaude(stub).Fetch(context.Background(), Subject{Domain: "acme.com"})

	require.NotNil(t, stub.req)
	require.Len(t, stub.req.Messages, 1)
	prompt := stub.req.Messages[0].Content
	assert.Contains(t, prompt, "IGNORE headcount and funding")
	assert.Contains(t, prompt, "acme.com revenue")
	assert.Contains(t, prompt, "strict JSON")
	assert.Equal(t, evaluatorSystem, stub.req.System)
}

func TestNewClaude_MissingKey(t *testing.T) {
	_, err := NewClaude("", DefaultClaudeOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "api key")
}
