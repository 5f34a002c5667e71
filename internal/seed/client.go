package seed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/okian/trialstats/internal/domain/model"
	"github.com/okian/trialstats/pkg/logger"
)

// Client defaults.
const (
	defaultTimeout    = 30 * time.Second
	defaultMaxRetries = 5
	defaultBackoff    = 100 * time.Millisecond
	progressEvery     = 1000
)

// Stats counts submission outcomes.
type Stats struct {
	Submitted int
	Accepted  int
	Duplicate int
	Failed    int
	Duration  time.Duration
}

// payload is the POST /runs body.
type payload struct {
	SubmissionID string `json:"submission_id"`
	model.RunRecord
}

type ack struct {
	Status string `json:"status"`
}

// Client submits runs to a trial stats service.
type Client struct {
	baseURL    string
	http       *http.Client
	workers    int
	maxRetries int
	backoff    time.Duration
	log        logger.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithWorkers sets how many requests run concurrently.
func WithWorkers(n int) ClientOption {
	return func(c *Client) {
		if n > 0 {
			c.workers = n
		}
	}
}

// WithHTTPClient replaces the HTTP client.
func WithHTTPClient(h *http.Client) ClientOption {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRetries sets how often a run is retried on backpressure and the
// initial delay, which doubles per attempt.
func WithRetries(n int, backoff time.Duration) ClientOption {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
		if backoff > 0 {
			c.backoff = backoff
		}
	}
}

// NewClient creates a client for the service at baseURL.
func NewClient(baseURL string, opts ...ClientOption) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		http:       &http.Client{Timeout: defaultTimeout},
		workers:    runtime.NumCPU() * 2,
		maxRetries: defaultMaxRetries,
		backoff:    defaultBackoff,
		log:        logger.Get().Named("seed"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Submit posts every run with a fresh submission id, using a worker pool.
// Runs rejected by validation count as failed; the first transport error
// is returned after all workers finish.
func (c *Client) Submit(ctx context.Context, runs []model.RunRecord) (Stats, error) {
	start := time.Now()
	url := c.baseURL + "/runs"

	var (
		accepted, duplicate, failed, submitted int64
		firstErr                               error
		errOnce                                sync.Once
	)

	work := make(chan model.RunRecord, c.workers*2)
	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for run := range work {
				status, err := c.submitOne(ctx, url, payload{SubmissionID: uuid.NewString(), RunRecord: run})
				n := atomic.AddInt64(&submitted, 1)
				switch {
				case err != nil:
					atomic.AddInt64(&failed, 1)
					c.log.Warn(ctx, "run not submitted", logger.String("run_id", run.ID), logger.Error(err))
					errOnce.Do(func() { firstErr = err })
				case status == "duplicate":
					atomic.AddInt64(&duplicate, 1)
				default:
					atomic.AddInt64(&accepted, 1)
				}
				if n%progressEvery == 0 {
					c.log.Info(ctx, "progress", logger.Int("submitted", int(n)), logger.Int("total", len(runs)))
				}
			}
		}()
	}

	go func() {
		defer close(work)
		for _, run := range runs {
			select {
			case <-ctx.Done():
				return
			case work <- run:
			}
		}
	}()
	wg.Wait()

	stats := Stats{
		Submitted: int(submitted),
		Accepted:  int(accepted),
		Duplicate: int(duplicate),
		Failed:    int(failed),
		Duration:  time.Since(start),
	}
	if firstErr == nil && ctx.Err() != nil {
		firstErr = ctx.Err()
	}
	return stats, firstErr
}

// submitOne posts p, retrying with the same submission id while the service
// reports backpressure.
func (c *Client) submitOne(ctx context.Context, url string, p payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", fmt.Errorf("marshal run: %w", err)
	}

	delay := c.backoff
	for attempt := 0; ; attempt++ {
		status, retry, err := c.post(ctx, url, body)
		if !retry || attempt >= c.maxRetries {
			return status, err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
}

func (c *Client) post(ctx context.Context, url string, body []byte) (status string, retry bool, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", false, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return "", false, fmt.Errorf("post run: %w", err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	switch resp.StatusCode {
	case http.StatusAccepted, http.StatusOK:
		var a ack
		if err := json.Unmarshal(data, &a); err != nil {
			return "", false, fmt.Errorf("decode ack: %w", err)
		}
		return a.Status, false, nil
	case http.StatusTooManyRequests, http.StatusServiceUnavailable:
		return "", true, fmt.Errorf("%w: %s", ErrRejected, strings.TrimSpace(string(data)))
	default:
		return "", false, fmt.Errorf("%w: status %d: %s", ErrRejected, resp.StatusCode, strings.TrimSpace(string(data)))
	}
}
