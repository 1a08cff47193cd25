// Package answersvc is the client for the external answer-generation
// service. The service receives the question, the user's free-text profile
// and optional option lists, and replies with a free-text answer that is
// post-processed back onto the field's constraints. The client never lets a
// service problem escalate: callers receive an error and fall through to
// their static defaults.
package answersvc

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
	"golang.org/x/time/rate"

	"github.com/formpilot/formpilot/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Request is the wire contract of the answer service.
type Request struct {
	Question    string   `json:"question"`
	ProfileText string   `json:"profileText"`
	Options     []string `json:"optionsList,omitempty"`
	NumericOnly bool     `json:"numericOnly,omitempty"`
	IsSummary   bool     `json:"isSummary,omitempty"`
	IsCover     bool     `json:"isCoverLetter,omitempty"`
}

type response struct {
	Answer string `json:"answer"`
}

// Client talks to the answer service over HTTP with retries, a request rate
// cap, and coalescing of identical in-flight questions.
type Client struct {
	cfg        config.AnswersConfig
	httpClient *http.Client
	limiter    *rate.Limiter
	group      singleflight.Group
	logger     *zap.Logger
}

// NewClient builds a client from configuration.
func NewClient(cfg config.AnswersConfig, logger *zap.Logger) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("answer service endpoint is required")
	}
	perMin := cfg.RequestsPerMin
	if perMin <= 0 {
		perMin = 20
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		limiter: rate.NewLimiter(rate.Limit(float64(perMin)/60.0), 1),
		logger:  logger.Named("answersvc"),
	}, nil
}

// Answer resolves one question. Identical questions asked while a call is in
// flight share its result; a result arriving after ctx is cancelled is
// simply ignored by the caller, never forcibly aborted here.
func (c *Client) Answer(ctx context.Context, req Request) (string, error) {
	v, err, _ := c.group.Do(req.Question, func() (any, error) {
		return c.answerOnce(ctx, req)
	})
	if err != nil {
		return "", err
	}
	if ctx.Err() != nil {
		return "", ctx.Err()
	}
	return v.(string), nil
}

func (c *Client) answerOnce(ctx context.Context, req Request) (string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return "", err
	}

	body, err := json.Marshal(req)
	if err != nil {
		return "", fmt.Errorf("failed to marshal request payload: %w", err)
	}

	b := backoff.NewExponentialBackOff()
	b.MaxElapsedTime = c.cfg.MaxRetryTime
	b.MaxInterval = 15 * time.Second

	var answer string
	operation := func() error {
		httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(fmt.Errorf("failed to create HTTP request: %w", err))
		}
		httpReq.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			httpReq.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		start := time.Now()
		resp, err := c.httpClient.Do(httpReq)
		if err != nil {
			c.logger.Warn("network error during answer request, retrying", zap.Error(err))
			return fmt.Errorf("failed to execute HTTP request: %w", err)
		}
		defer resp.Body.Close()

		respBody, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("failed to read response body: %w", err)
		}
		if resp.StatusCode != http.StatusOK {
			return c.handleAPIError(resp.StatusCode, respBody)
		}

		var payload response
		if err := json.Unmarshal(respBody, &payload); err != nil {
			return backoff.Permanent(fmt.Errorf("failed to decode response payload: %w", err))
		}
		if payload.Answer == "" {
			return backoff.Permanent(fmt.Errorf("answer service returned an empty answer"))
		}

		c.logger.Debug("answer generated",
			zap.Duration("duration", time.Since(start)),
			zap.String("question", req.Question))
		answer = payload.Answer
		return nil
	}

	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		return "", err
	}
	return Postprocess(answer, req), nil
}

func (c *Client) handleAPIError(statusCode int, body []byte) error {
	err := fmt.Errorf("answer service error: status %d, body: %s", statusCode, string(body))
	switch statusCode {
	case http.StatusTooManyRequests, http.StatusServiceUnavailable, http.StatusInternalServerError:
		return err // transient, retry
	default:
		c.logger.Error("answer service returned permanent error",
			zap.Int("status", statusCode), zap.ByteString("body", body))
		return backoff.Permanent(err)
	}
}
