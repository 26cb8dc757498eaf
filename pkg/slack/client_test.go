package slack

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPost(t *testing.T) {
	var got Message
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		raw, _ := io.ReadAll(r.Body)
		require.NoError(t, json.Unmarshal(raw, &got))
		_, _ = w.Write([]byte("ok"))
	}))
	defer srv.Close()

	client := NewClient()
	err := client.Post(context.Background(), srv.URL, Message{
		Text:   "lead qualified",
		Blocks: []Block{Section("*acme.com* approved")},
	})
	require.NoError(t, err)
	assert.Equal(t, "lead qualified", got.Text)
	require.Len(t, got.Blocks, 1)
	assert.Equal(t, "section", got.Blocks[0].Type)
	assert.Equal(t, "*acme.com* approved", got.Blocks[0].Text.Text)
}

func TestPostNon200(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("no_service"))
	}))
	defer srv.Close()

	client := NewClient()
	err := client.Post(context.Background(), srv.URL, Message{Text: "hi"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected status 404")
}
