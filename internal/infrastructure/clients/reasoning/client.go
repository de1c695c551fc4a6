package reasoning

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/zatekoja/visitscribe/internal/domain/entities"
	"github.com/zatekoja/visitscribe/internal/domain/providers"
	"github.com/zatekoja/visitscribe/internal/infrastructure/observability"
	"github.com/zatekoja/visitscribe/pkg/config"
	"github.com/zatekoja/visitscribe/pkg/retry"
)

const (
	defaultBaseURL    = "https://api.anthropic.com"
	defaultAPIVersion = "2023-06-01"

	maxAttempts  = 3
	baseDelay    = time.Second
	maxHintDelay = 10 * time.Second
)

var _ providers.ReasoningGateway = (*Client)(nil)

// Client is the resilient reasoning API gateway.
type Client struct {
	apiKey        string
	baseURL       string
	apiVersion    string
	timeout       time.Duration
	streamTimeout time.Duration
	httpClient    *http.Client
	limiter       *rate.Limiter
	sleep         func(ctx context.Context, d time.Duration) error
	now           func() time.Time
	logger        zerolog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the transport client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithSleeper replaces the backoff sleep.
func WithSleeper(sleep func(ctx context.Context, d time.Duration) error) Option {
	return func(c *Client) { c.sleep = sleep }
}

// WithLogger sets the logger used for retry and failure lines.
func WithLogger(logger zerolog.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

// WithClock sets the clock used for HTTP-date retry hints.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// NewClient creates a reasoning client.
func NewClient(cfg *config.ReasoningConfig, opts ...Option) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("reasoning api key is required")
	}

	c := &Client{
		apiKey:        cfg.APIKey,
		baseURL:       strings.TrimRight(cfg.BaseURL, "/"),
		apiVersion:    cfg.APIVersion,
		timeout:       cfg.Timeout,
		streamTimeout: cfg.StreamTimeout,
		httpClient:    &http.Client{},
		sleep:         retry.SleepContext,
		now:           time.Now,
		logger:        log.Logger.With().Str("component", "reasoning_gateway").Logger(),
	}
	if c.baseURL == "" {
		c.baseURL = defaultBaseURL
	}
	if c.apiVersion == "" {
		c.apiVersion = defaultAPIVersion
	}
	if c.timeout <= 0 {
		c.timeout = 120 * time.Second
	}
	if c.streamTimeout <= 0 {
		c.streamTimeout = 300 * time.Second
	}
	if cfg.RateLimitRPM > 0 {
		burst := cfg.RateLimitBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RateLimitRPM)), burst)
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

type cacheControl struct {
	Type string `json:"type"`
}

type systemBlock struct {
	Type         string        `json:"type"`
	Text         string        `json:"text"`
	CacheControl *cacheControl `json:"cache_control,omitempty"`
}

type thinkingConfig struct {
	Type         string `json:"type"`
	BudgetTokens int    `json:"budget_tokens"`
}

type messagesRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    []systemBlock      `json:"system,omitempty"`
	Messages  []entities.Message `json:"messages"`
	Thinking  *thinkingConfig    `json:"thinking,omitempty"`
	Stream    bool               `json:"stream,omitempty"`
}

type contentBlock struct {
	Type     string `json:"type"`
	Text     string `json:"text"`
	Thinking string `json:"thinking"`
}

type messagesResponse struct {
	Model      string         `json:"model"`
	StopReason string         `json:"stop_reason"`
	Content    []contentBlock `json:"content"`
	Usage      entities.Usage `json:"usage"`
}

func buildPayload(req *entities.GatewayRequest, stream bool) ([]byte, error) {
	payload := messagesRequest{
		Model:     req.Model,
		MaxTokens: req.MaxOutputTokens,
		Messages:  req.Messages,
		Stream:    stream,
	}
	if req.SystemPrompt != "" {
		block := systemBlock{Type: "text", Text: req.SystemPrompt}
		if req.CachingEnabled {
			block.CacheControl = &cacheControl{Type: "ephemeral"}
		}
		payload.System = []systemBlock{block}
	}
	if req.ThinkingBudget > 0 {
		payload.Thinking = &thinkingConfig{Type: "enabled", BudgetTokens: req.ThinkingBudget}
	}
	return json.Marshal(payload)
}

func (c *Client) policy(req *entities.GatewayRequest) retry.Policy {
	logger := c.logger.With().
		Str("model", req.Model).
		Str("subsystem", string(req.Subsystem)).
		Logger()

	return retry.Policy{
		MaxAttempts:  maxAttempts,
		BaseDelay:    baseDelay,
		MaxHintDelay: maxHintDelay,
		Classify:     classifyOutcome,
		Sleep:        c.sleep,
		OnRetry: func(attempt int, outcome retry.Outcome, err error, delay time.Duration) {
			observability.RecordGatewayRetry(context.Background(), req.Model, outcome.Class)
			logger.Warn().
				Err(err).
				Int("attempt", attempt+1).
				Str("failure_class", outcome.Class).
				Int("status", statusOf(err)).
				Dur("delay", delay).
				Msg("reasoning call failed, retrying")
		},
		OnGiveUp: func(attempt int, outcome retry.Outcome, err error) {
			logger.Warn().
				Err(err).
				Int("attempts", attempt+1).
				Str("failure_class", outcome.Class).
				Int("status", statusOf(err)).
				Msg("reasoning call failed")
		},
	}
}

// Complete sends one logical request, retrying transient failures. After the
// final attempt the last *providers.GatewayError is returned unchanged.
func (c *Client) Complete(ctx context.Context, req *entities.GatewayRequest) (*entities.GatewayResponse, error) {
	if req == nil {
		return nil, errors.New("gateway request is required")
	}
	body, err := buildPayload(req, false)
	if err != nil {
		return nil, err
	}

	var out *entities.GatewayResponse
	err = c.policy(req).Run(ctx, func(ctx context.Context, attempt int) error {
		resp, err := c.completeOnce(ctx, req.Model, body)
		if err != nil {
			return err
		}
		out = resp
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) completeOnce(ctx context.Context, model string, body []byte) (*entities.GatewayResponse, error) {
	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.send(ctx, attemptCtx, body)
	if err != nil {
		observability.RecordGatewayAttempt(ctx, model, statusOf(err), time.Since(start), string(providers.FailureKindOf(err)))
		return nil, err
	}
	defer resp.Body.Close()

	var envelope messagesResponse
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		var failure error = &providers.GatewayError{
			Kind:    providers.FailureServerError,
			Status:  resp.StatusCode,
			Message: "malformed response body",
			Err:     err,
		}
		if attemptCtx.Err() != nil {
			failure = classifyTransport(ctx, err)
		}
		observability.RecordGatewayAttempt(ctx, model, resp.StatusCode, time.Since(start), string(providers.FailureKindOf(failure)))
		return nil, failure
	}
	observability.RecordGatewayAttempt(ctx, model, resp.StatusCode, time.Since(start), "")

	out := &entities.GatewayResponse{
		Model:      envelope.Model,
		StatusCode: resp.StatusCode,
		StopReason: envelope.StopReason,
		Usage:      envelope.Usage,
	}
	if out.Model == "" {
		out.Model = model
	}
	var text, thinking strings.Builder
	for _, block := range envelope.Content {
		switch block.Type {
		case "text":
			text.WriteString(block.Text)
		case "thinking":
			thinking.WriteString(block.Thinking)
		}
	}
	out.Text = text.String()
	out.Thinking = thinking.String()
	return out, nil
}

// Stream opens a streaming request. The stream counts as open once its first
// consumer-visible event has arrived; failures up to that point are retried
// like any other attempt.
func (c *Client) Stream(ctx context.Context, req *entities.GatewayRequest) (<-chan entities.StreamEvent, error) {
	if req == nil {
		return nil, errors.New("gateway request is required")
	}
	body, err := buildPayload(req, true)
	if err != nil {
		return nil, err
	}

	var opened *upstreamStream
	err = c.policy(req).Run(ctx, func(ctx context.Context, attempt int) error {
		streamCtx, cancel := context.WithTimeout(ctx, c.streamTimeout)
		start := time.Now()
		resp, err := c.send(ctx, streamCtx, body)
		if err != nil {
			cancel()
			observability.RecordGatewayAttempt(ctx, req.Model, statusOf(err), time.Since(start), string(providers.FailureKindOf(err)))
			return err
		}

		stream := newUpstreamStream(resp.Body, cancel)
		if err := stream.prime(ctx); err != nil {
			stream.close()
			observability.RecordGatewayAttempt(ctx, req.Model, resp.StatusCode, time.Since(start), string(providers.FailureKindOf(err)))
			return err
		}
		observability.RecordGatewayAttempt(ctx, req.Model, resp.StatusCode, time.Since(start), "")
		opened = stream
		return nil
	})
	if err != nil {
		return nil, err
	}

	events := make(chan entities.StreamEvent)
	go c.pump(ctx, opened, req.Model, events)
	return events, nil
}

// send performs one HTTP attempt under attemptCtx and classifies any failure.
// A returned response always has a 2xx status.
func (c *Client) send(callerCtx, attemptCtx context.Context, body []byte) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(attemptCtx); err != nil {
			return nil, classifyTransport(callerCtx, err)
		}
	}

	httpReq, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL+"/v1/messages", bytes.NewReader(body))
	if err != nil {
		return nil, &providers.GatewayError{Kind: providers.FailureClientError, Message: "build request", Err: err}
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", c.apiKey)
	httpReq.Header.Set("anthropic-version", c.apiVersion)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, classifyTransport(callerCtx, err)
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		return nil, classifyStatus(resp, c.now())
	}
	return resp, nil
}
