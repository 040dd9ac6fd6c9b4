package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/attunehealth/theraplan/backend/internal/domain/providers"
	"github.com/attunehealth/theraplan/backend/pkg/config"
	apperrors "github.com/attunehealth/theraplan/backend/pkg/errors"
)

const defaultBaseURL = "https://api.openai.com/v1"

// Client implements the completion, moderation and transcription
// capability ports against the OpenAI API.
type Client struct {
	apiKey             string
	model              string
	moderationModel    string
	transcriptionModel string
	baseURL            string
	httpClient         *http.Client
	limiter            *tokenBucket
}

var _ providers.CompletionProvider = (*Client)(nil)
var _ providers.ModerationProvider = (*Client)(nil)
var _ providers.TranscriptionProvider = (*Client)(nil)

// NewClient creates a new OpenAI client.
func NewClient(cfg *config.OpenAIConfig) (*Client, error) {
	if cfg == nil || cfg.APIKey == "" {
		return nil, errors.New("openai api key is required")
	}

	model := cfg.Model
	if model == "" {
		model = "gpt-4o-mini"
	}
	moderationModel := cfg.ModerationModel
	if moderationModel == "" {
		moderationModel = "omni-moderation-latest"
	}
	transcriptionModel := cfg.TranscriptionModel
	if transcriptionModel == "" {
		transcriptionModel = "whisper-1"
	}

	limiter := newTokenBucket(cfg.RateLimitRPM, cfg.RateLimitBurst)

	return &Client{
		apiKey:             cfg.APIKey,
		model:              model,
		moderationModel:    moderationModel,
		transcriptionModel: transcriptionModel,
		baseURL:            defaultBaseURL,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
		limiter: limiter,
	}, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatChoice struct {
	Message chatMessage `json:"message"`
}

type chatEnvelope struct {
	Choices []chatChoice `json:"choices"`
}

// Complete issues one chat completion call. Transport failures (rate
// limits, server errors, timeouts) come back as transport errors so the
// caller's retry policy can act on them; empty content is a
// malformed-response error and is never retried.
func (c *Client) Complete(ctx context.Context, req providers.CompletionRequest) (string, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return "", apperrors.NewTransportError("rate limiter wait interrupted", err)
		}
	}

	payload := map[string]interface{}{
		"model": c.model,
		"messages": []chatMessage{
			{Role: "system", Content: req.SystemPrompt},
			{Role: "user", Content: req.UserContent},
		},
		"temperature": req.Temperature,
	}
	if req.MaxTokens > 0 {
		payload["max_tokens"] = req.MaxTokens
	}
	if req.JSONMode {
		payload["response_format"] = map[string]string{"type": "json_object"}
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", apperrors.NewInternalError("failed to encode completion request", err)
	}

	start := time.Now()
	resp, err := c.post(ctx, "/chat/completions", "application/json", bytes.NewReader(body))
	if err != nil {
		recordAIMetric(ctx, c.model, "completion", 0, time.Since(start), err)
		return "", err
	}
	defer resp.Body.Close()

	if err := checkStatus(resp.StatusCode, "completion"); err != nil {
		recordAIMetric(ctx, c.model, "completion", resp.StatusCode, time.Since(start), err)
		return "", err
	}

	var envelope chatEnvelope
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		recordAIMetric(ctx, c.model, "completion", resp.StatusCode, time.Since(start), err)
		return "", apperrors.NewMalformedResponseError("failed to decode completion response", err)
	}

	var text string
	if len(envelope.Choices) > 0 {
		text = envelope.Choices[0].Message.Content
	}
	if strings.TrimSpace(text) == "" {
		err := apperrors.NewMalformedResponseError("completion response has empty content", nil)
		recordAIMetric(ctx, c.model, "completion", resp.StatusCode, time.Since(start), err)
		return "", err
	}

	recordAIMetric(ctx, c.model, "completion", resp.StatusCode, time.Since(start), nil)
	return stripCodeFences(text), nil
}

func (c *Client) post(ctx context.Context, path, contentType string, body *bytes.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, body)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build request", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", contentType)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		// Client-side failures here are timeouts or connection
		// resets; both are transient.
		return nil, apperrors.NewTransportError("openai request failed", err)
	}
	return resp, nil
}

func checkStatus(statusCode int, operation string) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return apperrors.NewTransportError(fmt.Sprintf("openai %s failed with status %d", operation, statusCode), nil)
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return apperrors.NewForbiddenError(fmt.Sprintf("openai %s rejected with status %d", operation, statusCode))
	default:
		return apperrors.NewExternalError(fmt.Sprintf("openai %s failed with status %d", operation, statusCode), nil)
	}
}

// stripCodeFences removes Markdown code blocks if present
func stripCodeFences(text string) string {
	cleaned := text
	if strings.HasPrefix(cleaned, "```json") {
		cleaned = strings.TrimPrefix(cleaned, "```json")
		cleaned = strings.TrimSuffix(cleaned, "```")
	} else if strings.HasPrefix(cleaned, "```") {
		cleaned = strings.TrimPrefix(cleaned, "```")
		cleaned = strings.TrimSuffix(cleaned, "```")
	}
	return strings.TrimSpace(cleaned)
}

func newTokenBucket(rpm int, burst int) *tokenBucket {
	if rpm == 0 {
		rpm = 60
	}
	if rpm < 0 {
		return nil
	}
	if burst <= 0 {
		burst = 5
	}
	return newTokenBucketWithRate(rpm, burst)
}

type tokenBucket struct {
	tokens chan struct{}
}

func newTokenBucketWithRate(rpm int, burst int) *tokenBucket {
	bucket := &tokenBucket{
		tokens: make(chan struct{}, burst),
	}

	for i := 0; i < burst; i++ {
		bucket.tokens <- struct{}{}
	}

	interval := time.Minute / time.Duration(rpm)
	if interval <= 0 {
		interval = time.Millisecond
	}

	ticker := time.NewTicker(interval)
	go func() {
		for range ticker.C {
			select {
			case bucket.tokens <- struct{}{}:
			default:
			}
		}
	}()

	return bucket
}

func (b *tokenBucket) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-b.tokens:
		return nil
	}
}

type aiMetrics struct {
	requestCount    metric.Int64Counter
	requestDuration metric.Float64Histogram
	requestErrors   metric.Int64Counter
}

var aiMetricsInit = false
var aiMetricsState aiMetrics

func ensureAIMetrics() {
	if aiMetricsInit {
		return
	}
	meter := otel.Meter("github.com/attunehealth/theraplan/backend/openai")

	requestCount, err := meter.Int64Counter(
		"ai.openai.request.count",
		metric.WithDescription("Number of OpenAI requests"),
	)
	if err != nil {
		return
	}
	requestDuration, err := meter.Float64Histogram(
		"ai.openai.request.duration",
		metric.WithDescription("OpenAI request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
	if err != nil {
		return
	}
	requestErrors, err := meter.Int64Counter(
		"ai.openai.request.errors",
		metric.WithDescription("Number of OpenAI request errors"),
	)
	if err != nil {
		return
	}

	aiMetricsState = aiMetrics{
		requestCount:    requestCount,
		requestDuration: requestDuration,
		requestErrors:   requestErrors,
	}
	aiMetricsInit = true
}

func recordAIMetric(ctx context.Context, model, operation string, statusCode int, duration time.Duration, err error) {
	ensureAIMetrics()
	if !aiMetricsInit {
		return
	}

	attrs := []attribute.KeyValue{
		attribute.String("ai.provider", "openai"),
		attribute.String("ai.model", model),
		attribute.String("ai.operation", operation),
	}
	if statusCode > 0 {
		attrs = append(attrs, attribute.Int("http.status_code", statusCode))
	}

	aiMetricsState.requestCount.Add(ctx, 1, metric.WithAttributes(attrs...))
	aiMetricsState.requestDuration.Record(ctx, float64(duration.Milliseconds()), metric.WithAttributes(attrs...))
	if err != nil {
		aiMetricsState.requestErrors.Add(ctx, 1, metric.WithAttributes(attrs...))
	}
}
