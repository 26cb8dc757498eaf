package dispatch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func testOpts() PostOptions {
	return PostOptions{
		Timeout:    2 * time.Second,
		Retries:    2,
		RetryDelay: 5 * time.Millisecond,
	}
}

func TestPost_Success(t *testing.T) {
	var gotBody atomic.Value
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		buf, _ := io.ReadAll(r.Body)
		gotBody.Store(string(buf))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(8)
	defer d.Close()

	res := d.Post(context.Background(), srv.URL, map[string]string{"result": "approved"}, testOpts())

	assert.True(t, res.OK)
	assert.Equal(t, http.StatusOK, res.Status)
	assert.Contains(t, gotBody.Load().(string), "approved")
}

func TestPost_4xxIsTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	d := New(8)
	defer d.Close()

	res := d.Post(context.Background(), srv.URL, map[string]string{}, testOpts())

	assert.False(t, res.OK)
	assert.Equal(t, http.StatusUnprocessableEntity, res.Status)
	assert.Equal(t, int32(1), calls.Load(), "4xx must not be retried")
}

func TestPost_5xxRetriesThenSucceeds(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(8)
	defer d.Close()

	res := d.Post(context.Background(), srv.URL, map[string]string{}, testOpts())

	assert.True(t, res.OK)
	assert.Equal(t, int32(3), calls.Load())
}

func TestPost_5xxExhaustsRetries(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	d := New(8)
	defer d.Close()

	res := d.Post(context.Background(), srv.URL, map[string]string{}, testOpts())

	assert.False(t, res.OK)
	assert.Equal(t, http.StatusInternalServerError, res.Status)
	assert.Equal(t, int32(3), calls.Load(), "initial attempt plus two retries")
	assert.NotEmpty(t, res.Err)
}

func TestPost_NetworkErrorRetries(t *testing.T) {
	// Server closed before the call: every attempt fails at the dial.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	d := New(8)
	defer d.Close()

	res := d.Post(context.Background(), url, map[string]string{}, testOpts())

	assert.False(t, res.OK)
	assert.NotEmpty(t, res.Err)
}

func TestPost_NoURL(t *testing.T) {
	d := New(8)
	defer d.Close()

	res := d.Post(context.Background(), "", nil, testOpts())

	assert.False(t, res.OK)
	assert.Contains(t, res.Err, "no webhook url")
}

func TestEnqueue_DeliversInBackground(t *testing.T) {
	done := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(done)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	d := New(8)
	d.Enqueue(Delivery{Name: "clay", URL: srv.URL, Payload: map[string]string{"ok": "yes"}, Opts: testOpts()})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("delivery never arrived")
	}
	d.Close()
}

func TestEnqueue_FullQueueDoesNotBlock(t *testing.T) {
	d := &Dispatcher{
		http:  &http.Client{},
		queue: make(chan Delivery, 1),
		log:   zap.NewNop(),
	}
	// No worker running: the second enqueue must drop, not block.
	d.Enqueue(Delivery{Name: "a"})

	doneCh := make(chan struct{})
	go func() {
		d.Enqueue(Delivery{Name: "b"})
		close(doneCh)
	}()

	select {
	case <-doneCh:
	case <-time.After(time.Second):
		t.Fatal("Enqueue blocked on a full queue")
	}
}
