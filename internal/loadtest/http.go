package loadtest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/okian/facequiz/pkg/logger"
)

// HTTPClient wraps http.Client with the base URL of the service under test.
type HTTPClient struct {
	client  *http.Client
	baseURL string
}

// newHTTPClient creates a client with the given timeout.
func newHTTPClient(baseURL string, timeout time.Duration) *HTTPClient {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPClient{
		client:  &http.Client{Timeout: timeout},
		baseURL: baseURL,
	}
}

// Get performs a GET request and decodes a JSON response into out.
// It returns the status code even when decoding fails.
func (c *HTTPClient) Get(ctx context.Context, path string, out any) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, http.NoBody)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	return c.do(req, out)
}

// Post performs a POST request with a JSON body. A nil body sends none.
func (c *HTTPClient) Post(ctx context.Context, path string, body, out any) (int, error) {
	var r io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		r = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, r)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(req, out)
}

func (c *HTTPClient) do(req *http.Request, out any) (int, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return resp.StatusCode, fmt.Errorf("read response: %w", err)
	}
	if out == nil || len(data) == 0 {
		return resp.StatusCode, nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return resp.StatusCode, fmt.Errorf("decode %s %s: %w", req.Method, req.URL.Path, err)
	}
	return resp.StatusCode, nil
}

type outcome int

const (
	outcomeCreated outcome = iota
	outcomeConflict
	outcomeFailed
)

type submitResponse struct {
	Success  bool `json:"success"`
	Conflict bool `json:"conflict"`
}

// submitAll posts every submission using cfg.Workers concurrent workers.
// It returns the submissions the server accepted.
func submitAll(ctx context.Context, cfg *Config, client *HTTPClient, subs []Submission, stats *Stats) []Submission {
	log := logger.Get()
	log.Info(ctx, "submitting scores",
		logger.Int("count", len(subs)),
		logger.Int("workers", workerCount(cfg)))

	var (
		created   int64
		conflicts int64
		failed    int64
		submitted int64
		mu        sync.Mutex
		accepted  = make([]Submission, 0, len(subs))
		lastMu    sync.Mutex
		last      = time.Now()
	)

	subChan := make(chan Submission, workerCount(cfg)*WorkerChannelMultiplier)
	var wg sync.WaitGroup

	for i := 0; i < workerCount(cfg); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for sub := range subChan {
				n := atomic.AddInt64(&submitted, 1)
				switch submitOne(ctx, client, sub) {
				case outcomeCreated:
					atomic.AddInt64(&created, 1)
					mu.Lock()
					accepted = append(accepted, sub)
					mu.Unlock()
				case outcomeConflict:
					atomic.AddInt64(&conflicts, 1)
				default:
					atomic.AddInt64(&failed, 1)
				}

				if !cfg.Verbose {
					continue
				}
				lastMu.Lock()
				report := time.Since(last) >= progressInterval
				if report {
					last = time.Now()
				}
				lastMu.Unlock()
				if report {
					log.Info(ctx, "progress",
						logger.Int64("submitted", n),
						logger.Int("of", len(subs)),
						logger.Int64("created", atomic.LoadInt64(&created)),
						logger.Int64("conflicts", atomic.LoadInt64(&conflicts)),
						logger.Int64("failed", atomic.LoadInt64(&failed)))
				}
			}
		}()
	}

	go func() {
		defer close(subChan)
		for _, sub := range subs {
			select {
			case <-ctx.Done():
				return
			case subChan <- sub:
			}
		}
	}()

	wg.Wait()

	stats.Submitted = int(atomic.LoadInt64(&submitted))
	stats.Created = int(atomic.LoadInt64(&created))
	stats.Conflicts = int(atomic.LoadInt64(&conflicts))
	stats.Failed = int(atomic.LoadInt64(&failed))

	log.Info(ctx, "submission completed",
		logger.Int("created", stats.Created),
		logger.Int("conflicts", stats.Conflicts),
		logger.Int("failed", stats.Failed))
	return accepted
}

// submitOne posts a single submission and classifies the answer.
func submitOne(ctx context.Context, client *HTTPClient, sub Submission) outcome {
	var resp submitResponse
	status, err := client.Post(ctx, "/leaderboard", sub, &resp)
	switch {
	case err != nil:
		return outcomeFailed
	case status == http.StatusCreated && resp.Success:
		return outcomeCreated
	case status == http.StatusConflict && resp.Conflict:
		return outcomeConflict
	default:
		return outcomeFailed
	}
}

type countResponse struct {
	Count int `json:"count"`
}

// incrementGames calls /increment-games cfg.Games times concurrently and
// records the counter before and after.
func incrementGames(ctx context.Context, cfg *Config, client *HTTPClient, stats *Stats) error {
	if cfg.Games <= 0 {
		return nil
	}

	var before countResponse
	if err := expectOK(client.Get(ctx, "/game-count", &before)); err != nil {
		return fmt.Errorf("read game count: %w", err)
	}

	var (
		done int64
		wg   sync.WaitGroup
		work = make(chan struct{}, workerCount(cfg)*WorkerChannelMultiplier)
	)
	for i := 0; i < workerCount(cfg); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range work {
				var c countResponse
				if status, err := client.Post(ctx, "/increment-games", nil, &c); err == nil && status == http.StatusOK {
					atomic.AddInt64(&done, 1)
				}
			}
		}()
	}
	for i := 0; i < cfg.Games && ctx.Err() == nil; i++ {
		work <- struct{}{}
	}
	close(work)
	wg.Wait()

	var after countResponse
	if err := expectOK(client.Get(ctx, "/game-count", &after)); err != nil {
		return fmt.Errorf("read game count: %w", err)
	}

	stats.GamesIncremented = int(done)
	stats.GameCountBefore = before.Count
	stats.GameCountAfter = after.Count
	logger.Get().Info(ctx, "games incremented",
		logger.Int("calls", stats.GamesIncremented),
		logger.Int("before", before.Count),
		logger.Int("after", after.Count))
	return nil
}

// expectOK turns a non-200 answer into an error.
func expectOK(status int, err error) error {
	if err != nil {
		return err
	}
	if status != http.StatusOK {
		return fmt.Errorf("unexpected status %d", status)
	}
	return nil
}

func workerCount(cfg *Config) int {
	if cfg.Workers < 1 {
		return 1
	}
	return cfg.Workers
}
