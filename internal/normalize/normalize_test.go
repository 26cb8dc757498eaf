package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eccleston-labs/tally-enricher/internal/model"
)

func TestDomainFromEmail(t *testing.T) {
	tests := []struct {
		name  string
		email string
		want  string
	}{
		{"plain", "a@acme.com", "acme.com"},
		{"uppercased", "A@ACME.COM", "acme.com"},
		{"surrounding space", "  a@acme.com  ", "acme.com"},
		{"no at sign", "acme.com", ""},
		{"two at signs", "a@b@acme.com", ""},
		{"empty local part still splits", "@acme.com", "acme.com"},
		{"empty domain part", "a@", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DomainFromEmail(tt.email))
		})
	}
}

func TestNormalizeWebsite(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"bare domain", "acme.com", "acme.com"},
		{"https url", "https://acme.com/pricing", "acme.com"},
		{"http url", "http://www.acme.com", "www.acme.com"},
		{"uppercase host", "HTTPS://ACME.COM", "acme.com"},
		{"no dot", "localhost", ""},
		{"empty", "", ""},
		{"whitespace only", "   ", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeWebsite(tt.input))
		})
	}
}

func TestDeriveDomain_WebsiteBeatsEmail(t *testing.T) {
	answers := model.Answers{
		model.FieldEmail:   "a@gmail.com",
		model.FieldWebsite: "acme.com",
	}
	assert.Equal(t, "acme.com", DeriveDomain(answers))
}

func TestDeriveDomain_FallsBackToEmail(t *testing.T) {
	answers := model.Answers{model.FieldEmail: "a@acme.com"}
	assert.Equal(t, "acme.com", DeriveDomain(answers))
}

func TestDeriveDomain_NothingDerivable(t *testing.T) {
	assert.Equal(t, "", DeriveDomain(model.Answers{}))
}

func TestParseSeats(t *testing.T) {
	tests := []struct {
		input string
		want  *int
	}{
		{"250", model.Int(250)},
		{"1,000", model.Int(1000)},
		{"250 seats", model.Int(250)},
		{"none", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSeats(tt.input))
		})
	}
}

func TestParseSizeBucket(t *testing.T) {
	tests := []struct {
		input string
		want  *int
	}{
		{"1,000+", model.Int(1000)},
		{"10001+", model.Int(10001)},
		{"50-200", model.Int(125)},
		{"1-10", model.Int(6)},
		{"500", model.Int(500)},
		{"unknown", nil},
		{"", nil},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseSizeBucket(tt.input))
		})
	}
}

func TestDerive(t *testing.T) {
	answers := model.Answers{
		model.FieldEmail:       " a@acme.com ",
		model.FieldCompanyName: " Acme Corp ",
		model.FieldSeats:       "1,000",
		model.FieldCompanySize: "201-500",
		model.FieldComputers:   "Mac",
	}

	d := Derive(answers)
	assert.Equal(t, "a@acme.com", d.Email)
	assert.Equal(t, "acme.com", d.Domain)
	assert.Equal(t, "Acme Corp", d.CompanyName)
	require.NotNil(t, d.Seats)
	assert.Equal(t, 1000, *d.Seats)
	assert.Equal(t, "201-500", d.CompanySize)
	assert.Equal(t, "Mac", d.Computers)
}

func TestFromTallyWebhook_FieldsEnvelope(t *testing.T) {
	raw := []byte(`{
		"event": {
			"data": {
				"responseId": "sub-42",
				"fields": [
					{"key": "q1", "label": "Email Address", "value": "a@acme.com"},
					{"key": "q2", "label": "Company Name", "value": "Acme Corp"},
					{"key": "q3", "label": "Number of Seats", "value": 250},
					{"key": "q4", "label": "Company Size", "value": "201-500"}
				]
			}
		}
	}`)

	sid, answers, err := FromTallyWebhook(raw)
	require.NoError(t, err)
	assert.Equal(t, "sub-42", sid)
	assert.Equal(t, "a@acme.com", answers[model.FieldEmail])
	assert.Equal(t, "Acme Corp", answers[model.FieldCompanyName])
	assert.Equal(t, "250", answers[model.FieldSeats])
	assert.Equal(t, "201-500", answers[model.FieldCompanySize])
}

func TestFromTallyWebhook_FlatBody(t *testing.T) {
	raw := []byte(`{
		"responseId": "sub-7",
		"work_email": "a@acme.com",
		"company_name": "Acme Corp",
		"company_size": "50-200",
		"company_seats": "120",
		"website": "acme.com"
	}`)

	sid, answers, err := FromTallyWebhook(raw)
	require.NoError(t, err)
	assert.Equal(t, "sub-7", sid)
	assert.Equal(t, "a@acme.com", answers[model.FieldEmail])
	assert.Equal(t, "Acme Corp", answers[model.FieldCompanyName])
	assert.Equal(t, "50-200", answers[model.FieldCompanySize])
	assert.Equal(t, "120", answers[model.FieldSeats])
	assert.Equal(t, "acme.com", answers[model.FieldWebsite])
}

func TestFromTallyWebhook_MissingResponseIDGetsGenerated(t *testing.T) {
	sid, _, err := FromTallyWebhook([]byte(`{"work_email":"a@acme.com"}`))
	require.NoError(t, err)
	assert.NotEmpty(t, sid)
}

func TestFromTallyWebhook_AllCanonicalLabelsPresent(t *testing.T) {
	_, answers, err := FromTallyWebhook([]byte(`{}`))
	require.NoError(t, err)
	for _, label := range []string{
		model.FieldCompanyName, model.FieldEmail, model.FieldCompanySize,
		model.FieldSeats, model.FieldComputers, model.FieldWebsite,
	} {
		_, ok := answers[label]
		assert.True(t, ok, "missing canonical label %q", label)
	}
}

func TestFromTallyWebhook_InvalidJSON(t *testing.T) {
	_, _, err := FromTallyWebhook([]byte("not json"))
	assert.Error(t, err)
}

func TestNormalizeDestination(t *testing.T) {
	tests := []struct {
		name     string
		rawURL   string
		fallback string
		want     string
	}{
		{"empty falls back", "", "https://x.com", "https://x.com"},
		{"https passes through", "https://cal.com/acme", "https://x.com", "https://cal.com/acme"},
		{"http passes through", "http://cal.com/acme", "https://x.com", "http://cal.com/acme"},
		{"bare host upgraded", "cal.com/acme", "https://x.com", "https://cal.com/acme"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeDestination(tt.rawURL, tt.fallback))
		})
	}
}
