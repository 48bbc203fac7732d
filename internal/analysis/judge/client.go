package judge

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/NikushaDevashvili/observa-api-sub002/internal/metrics"
	"go.uber.org/zap"
)

// AnalyzeRequest is the judge-service contract body: identity plus the
// denormalized text and numeric fields the judge scores on.
type AnalyzeRequest struct {
	TraceID     string   `json:"trace_id"`
	TenantID    string   `json:"tenant_id"`
	ProjectID   string   `json:"project_id"`
	Query       string   `json:"query,omitempty"`
	Response    string   `json:"response,omitempty"`
	Model       string   `json:"model,omitempty"`
	TotalTokens int64    `json:"total_tokens,omitempty"`
	LatencyMs   float64  `json:"latency_ms,omitempty"`
	CostUSD     *float64 `json:"cost_usd,omitempty"`
}

// Scores is the judge's scoring object. Absent fields stay nil so a partial
// response still yields partial signals.
type Scores struct {
	Faithfulness     *float64 `json:"faithfulness,omitempty"`
	ContextRelevance *float64 `json:"context_relevance,omitempty"`
	Quality          *float64 `json:"quality,omitempty"`
	Hallucination    *float64 `json:"hallucination,omitempty"`
	EmbeddingDrift   *float64 `json:"embedding_drift,omitempty"`
	DuplicateScore   *float64 `json:"duplicate_score,omitempty"`
	ClusterOutlier   *float64 `json:"cluster_outlier,omitempty"`
}

// Client is the boundary to the external judge service.
type Client interface {
	AnalyzeLayer3(ctx context.Context, req AnalyzeRequest) (*Scores, error)
	AnalyzeLayer4(ctx context.Context, req AnalyzeRequest) (*Scores, error)
}

// RetryPolicy controls the per-call retry schedule: exponential backoff
// base*2^attempt. HTTP 503 and request timeouts are retryable; any other
// non-2xx fails the attempt hard.
type RetryPolicy struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		BaseDelay:   1000 * time.Millisecond,
	}
}

// ErrUnavailable marks a call that exhausted its retryable attempts. The job
// itself remains eligible for broker-level retry.
var ErrUnavailable = errors.New("judge service unavailable")

type HTTPClient struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	logger     *zap.Logger
}

func NewHTTPClient(baseURL string, retry RetryPolicy, logger *zap.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:    baseURL,
		httpClient: &http.Client{},
		retry:      retry,
		logger:     logger,
	}
}

func (c *HTTPClient) AnalyzeLayer3(ctx context.Context, req AnalyzeRequest) (*Scores, error) {
	return c.analyze(ctx, "/analyze/layer3", "layer3", req)
}

func (c *HTTPClient) AnalyzeLayer4(ctx context.Context, req AnalyzeRequest) (*Scores, error) {
	return c.analyze(ctx, "/analyze/layer4", "layer4", req)
}

func (c *HTTPClient) analyze(
	ctx context.Context,
	path string,
	layer string,
	req AnalyzeRequest,
) (*Scores, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analyze request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt < c.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := c.retry.BaseDelay * time.Duration(1<<(attempt-1))
			c.logger.Info(
				"Retrying judge call",
				zap.String("layer", layer),
				zap.Int("attempt", attempt+1),
				zap.Duration("delay", delay),
			)
			select {
			case <-ctx.Done():
				return nil, fmt.Errorf("judge call cancelled: %w", ctx.Err())
			case <-time.After(delay):
			}
		}

		start := time.Now()
		scores, retryable, err := c.doRequest(ctx, path, body)
		metrics.JudgeRequestDuration.WithLabelValues(layer).Observe(time.Since(start).Seconds())
		if err == nil {
			return scores, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, fmt.Errorf("%w after %d attempts: %s", ErrUnavailable, c.retry.MaxAttempts, lastErr)
}

func (c *HTTPClient) doRequest(
	ctx context.Context,
	path string,
	body []byte,
) (*Scores, bool, error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to build judge request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	res, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, isTimeout(err), fmt.Errorf("judge request failed: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == http.StatusServiceUnavailable {
		return nil, true, fmt.Errorf("judge returned 503")
	}
	if res.StatusCode < 200 || res.StatusCode > 299 {
		return nil, false, fmt.Errorf("judge returned status %d", res.StatusCode)
	}

	var scores Scores
	if err := json.NewDecoder(res.Body).Decode(&scores); err != nil {
		return nil, false, fmt.Errorf("failed to decode judge response: %w", err)
	}
	return &scores, false, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
