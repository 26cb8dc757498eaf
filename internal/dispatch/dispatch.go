// Package dispatch delivers qualification outcomes to downstream
// systems off the request path. Deliveries are fire-and-forget: their
// failures are logged, never surfaced to the end user.
package dispatch

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/eccleston-labs/tally-enricher/internal/resilience"
)

// Result is the terminal outcome of one delivery, used for logging only.
type Result struct {
	OK     bool
	Status int
	Err    string
}

// PostOptions tunes one delivery.
type PostOptions struct {
	Timeout    time.Duration // per attempt
	Retries    int           // extra attempts on network error / 5xx
	RetryDelay time.Duration // linear backoff step
}

// DefaultPostOptions returns the delivery defaults: short per-attempt
// timeout, one retry with linear backoff.
func DefaultPostOptions() PostOptions {
	return PostOptions{
		Timeout:    1500 * time.Millisecond,
		Retries:    1,
		RetryDelay: 300 * time.Millisecond,
	}
}

// Delivery is one queued outbound post.
type Delivery struct {
	Name    string // label for logs: "slack", "clay", ...
	URL     string
	Payload any
	Opts    PostOptions
}

// Dispatcher owns a buffered queue and a worker goroutine. Enqueue
// never blocks the caller; when the queue is full the delivery is
// dropped with a warning rather than stalling a response.
type Dispatcher struct {
	http  *http.Client
	queue chan Delivery
	log   *zap.Logger
	wg    sync.WaitGroup
	once  sync.Once
}

// New creates a Dispatcher and starts its worker.
func New(queueSize int) *Dispatcher {
	if queueSize <= 0 {
		queueSize = 256
	}
	d := &Dispatcher{
		http:  &http.Client{},
		queue: make(chan Delivery, queueSize),
		log:   zap.L().Named("dispatch"),
	}
	d.wg.Add(1)
	go d.worker()
	return d
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for del := range d.queue {
		res := d.Post(context.Background(), del.URL, del.Payload, del.Opts)
		if res.OK {
			d.log.Info("delivery ok", zap.String("name", del.Name), zap.Int("status", res.Status))
		} else {
			d.log.Warn("delivery failed",
				zap.String("name", del.Name),
				zap.Int("status", res.Status),
				zap.String("error", res.Err))
		}
	}
}

// Enqueue hands a delivery to the worker without blocking.
func (d *Dispatcher) Enqueue(del Delivery) {
	select {
	case d.queue <- del:
	default:
		d.log.Warn("queue full, dropping delivery", zap.String("name", del.Name), zap.String("url", del.URL))
	}
}

// Close drains the queue and stops the worker.
func (d *Dispatcher) Close() {
	d.once.Do(func() { close(d.queue) })
	d.wg.Wait()
}

// Post delivers one JSON payload. Retries apply only to network
// failures and 5xx statuses, with linear backoff; 4xx responses are
// terminal. The outcome never becomes a Go error: callers only log it.
func (d *Dispatcher) Post(ctx context.Context, url string, payload any, opts PostOptions) Result {
	if url == "" {
		return Result{OK: false, Err: "no webhook url configured"}
	}
	if opts.Timeout <= 0 {
		opts = DefaultPostOptions()
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return Result{OK: false, Err: eris.Wrap(err, "dispatch: marshal payload").Error()}
	}

	cfg := resilience.RetryConfig{
		MaxAttempts:    opts.Retries + 1,
		InitialBackoff: opts.RetryDelay,
		Multiplier:     1.0,
		OnRetry:        resilience.RetryLogger("dispatch", "post"),
	}

	var lastStatus int
	err = resilience.Do(ctx, cfg, func(ctx context.Context) error {
		status, attemptErr := d.attempt(ctx, url, body, opts.Timeout)
		if status != 0 {
			lastStatus = status
		}
		return attemptErr
	})
	if err != nil {
		return Result{OK: false, Status: lastStatus, Err: err.Error()}
	}
	return Result{OK: true, Status: lastStatus}
}

// attempt performs one POST. Non-2xx statuses become errors so the
// retry layer can classify them; only 5xx errors are transient.
func (d *Dispatcher) attempt(ctx context.Context, url string, body []byte, timeout time.Duration) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return 0, eris.Wrap(err, "dispatch: create request")
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", "tally-enricher/1.0")

	resp, err := d.http.Do(req)
	if err != nil {
		return 0, resilience.NewTransientError(err, 0)
	}
	defer resp.Body.Close() //nolint:errcheck

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return resp.StatusCode, nil
	}

	err = eris.Errorf("dispatch: status %d: %s", resp.StatusCode, string(respBody))
	if resp.StatusCode >= 500 {
		return resp.StatusCode, resilience.NewTransientError(err, resp.StatusCode)
	}
	return resp.StatusCode, err
}
