// Package analytics ships run telemetry to an ingest endpoint on a
// fire-and-forget basis. Nothing here may block or fail a suite run:
// records are queued, sent in detached batches, and any transport
// failure is swallowed with a debug log.
package analytics

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/promptarena/promptarena/internal/runner"
)

const (
	defaultBatchSize = 20
	defaultTimeout   = 10 * time.Second

	ingestPath = "/api/ingest"
)

// Option configures a Client.
type Option func(*Client)

// WithAPIKey sets the bearer token sent with each batch.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		if c == nil {
			return
		}
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithBatchSize sets how many case records accumulate before a send.
func WithBatchSize(n int) Option {
	return func(c *Client) {
		if c == nil || n <= 0 {
			return
		}
		c.batchSize = n
	}
}

// WithHTTPClient replaces the transport.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if c == nil || h == nil {
			return
		}
		c.httpClient = h
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(log *zap.SugaredLogger) Option {
	return func(c *Client) {
		if c == nil || log == nil {
			return
		}
		c.log = log
	}
}

// Client queues evaluation records and posts them as JSON batches.
// The zero endpoint disables it entirely.
type Client struct {
	endpoint   string
	apiKey     string
	batchSize  int
	httpClient *http.Client
	log        *zap.SugaredLogger

	mu    sync.Mutex
	queue []CaseRecord

	inflight sync.WaitGroup
}

var _ runner.Sink = (*Client)(nil)

// NewClient constructs a Client posting to endpoint. An empty endpoint
// yields a disabled client whose methods are all no-ops.
func NewClient(endpoint string, opts ...Option) *Client {
	c := &Client{
		endpoint:   strings.TrimRight(strings.TrimSpace(endpoint), "/"),
		batchSize:  defaultBatchSize,
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        zap.NewNop().Sugar(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	c.queue = make([]CaseRecord, 0, c.batchSize)
	return c
}

// Enabled reports whether the client has somewhere to send.
func (c *Client) Enabled() bool {
	return c != nil && c.endpoint != ""
}

// TrackTestCase queues one evaluation record, sending a batch once the
// threshold is reached. It never blocks on the network.
func (c *Client) TrackTestCase(res *runner.EvalResult) {
	if !c.Enabled() || res == nil {
		return
	}

	c.mu.Lock()
	c.queue = append(c.queue, newCaseRecord(res))
	var full []CaseRecord
	if len(c.queue) >= c.batchSize {
		full = c.queue
		c.queue = make([]CaseRecord, 0, c.batchSize)
	}
	c.mu.Unlock()

	if full != nil {
		c.send(Batch{Cases: full})
	}
}

// TrackTestRun sends a run summary along with any queued case records.
func (c *Client) TrackTestRun(res *runner.TestResults) {
	if !c.Enabled() || res == nil {
		return
	}

	c.mu.Lock()
	pending := c.queue
	c.queue = make([]CaseRecord, 0, c.batchSize)
	c.mu.Unlock()

	c.send(Batch{Runs: []RunRecord{newRunRecord(res)}, Cases: pending})
}

// Flush sends whatever is queued without waiting for the threshold.
func (c *Client) Flush() {
	if !c.Enabled() {
		return
	}

	c.mu.Lock()
	pending := c.queue
	c.queue = make([]CaseRecord, 0, c.batchSize)
	c.mu.Unlock()

	if len(pending) > 0 {
		c.send(Batch{Cases: pending})
	}
}

// Close flushes the queue and waits for detached sends to finish, or
// for ctx to expire.
func (c *Client) Close(ctx context.Context) error {
	if !c.Enabled() {
		return nil
	}
	c.Flush()

	done := make(chan struct{})
	go func() {
		c.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// send posts a batch on a detached goroutine tracked by the in-flight
// group so Close can drain.
func (c *Client) send(b Batch) {
	if len(b.Runs) == 0 && len(b.Cases) == 0 {
		return
	}
	b.SentAt = time.Now().UTC()

	c.inflight.Add(1)
	go func() {
		defer c.inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				c.log.Debugw("analytics send panicked", "panic", r)
			}
		}()
		c.post(b)
	}()
}

func (c *Client) post(b Batch) {
	body, err := json.Marshal(b)
	if err != nil {
		c.log.Debugw("analytics encode failed", "error", err)
		return
	}

	req, err := http.NewRequest(http.MethodPost, c.endpoint+ingestPath, bytes.NewReader(body))
	if err != nil {
		c.log.Debugw("analytics request failed", "error", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Debugw("analytics send failed", "error", err)
		return
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		c.log.Debugw("analytics send rejected",
			"status", resp.StatusCode,
			"runs", len(b.Runs),
			"cases", len(b.Cases))
	}
}
