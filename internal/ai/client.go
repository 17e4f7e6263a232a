package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

// ErrServiceUnavailable covers every failure to get a reply from the language
// model: network errors, non-2xx responses and an open circuit breaker.
var ErrServiceUnavailable = errors.New("ai: language model unavailable")

// DefaultSystemPrompt is used when a request does not set its own.
const DefaultSystemPrompt = "You are a helpful AI assistant for a collaborative whiteboard app (like Mural). Help users organize, generate, and analyze their canvas content."

// Request is one text-in call to the language model.
type Request struct {
	System    string
	Prompt    string
	MaxTokens int
}

// Client is the text-in/text-out language model collaborator.
type Client interface {
	Complete(ctx context.Context, req Request) (string, error)
}

// Settings configures HTTPClient. They can be swapped at runtime.
type Settings struct {
	BaseURL   string
	APIKey    string
	Model     string
	MaxTokens int
	Timeout   time.Duration
}

// BreakerSettings tunes the circuit breaker around the model endpoint.
type BreakerSettings struct {
	MaxRequests  uint32
	Interval     time.Duration
	Timeout      time.Duration
	FailureRatio float64
	MinRequests  uint32
}

func DefaultBreakerSettings() BreakerSettings {
	return BreakerSettings{
		MaxRequests:  1,
		Interval:     60 * time.Second,
		Timeout:      30 * time.Second,
		FailureRatio: 0.6,
		MinRequests:  3,
	}
}

// ─────────────────────────────────────────────────────────────
// HTTPClient — Anthropic-compatible messages endpoint
// ─────────────────────────────────────────────────────────────

const anthropicVersion = "2023-06-01"

type HTTPClient struct {
	mu       sync.RWMutex
	settings Settings
	http     *http.Client
	cb       *gobreaker.CircuitBreaker
	log      *zap.Logger
}

func NewHTTPClient(s Settings, b BreakerSettings, log *zap.Logger) *HTTPClient {
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("component", "llm"))
	c := &HTTPClient{
		settings: s,
		http:     &http.Client{},
		log:      log,
	}
	c.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "llm",
		MaxRequests: b.MaxRequests,
		Interval:    b.Interval,
		Timeout:     b.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			if counts.Requests < b.MinRequests {
				return false
			}
			ratio := float64(counts.TotalFailures) / float64(counts.Requests)
			return ratio >= b.FailureRatio
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn("circuit breaker state changed",
				zap.String("breaker", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
		IsSuccessful: func(err error) bool {
			// A cancelled caller says nothing about the endpoint's health.
			return err == nil || errors.Is(err, context.Canceled)
		},
	})
	return c
}

// Configure replaces the connection settings, e.g. after a config reload.
func (c *HTTPClient) Configure(s Settings) {
	c.mu.Lock()
	c.settings = s
	c.mu.Unlock()
}

func (c *HTTPClient) current() Settings {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.settings
}

type messagesRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system,omitempty"`
	Messages  []chatMessage `json:"messages"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type messagesResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Complete sends req and returns the concatenated text blocks of the reply.
func (c *HTTPClient) Complete(ctx context.Context, req Request) (string, error) {
	s := c.current()
	out, err := c.cb.Execute(func() (interface{}, error) {
		return c.do(ctx, s, req)
	})
	if err != nil {
		c.log.Warn("llm request failed", zap.Error(err))
		return "", fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	return out.(string), nil
}

func (c *HTTPClient) do(ctx context.Context, s Settings, req Request) (string, error) {
	if s.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.Timeout)
		defer cancel()
	}

	maxTokens := req.MaxTokens
	if maxTokens <= 0 {
		maxTokens = s.MaxTokens
	}
	system := req.System
	if system == "" {
		system = DefaultSystemPrompt
	}
	body, err := json.Marshal(messagesRequest{
		Model:     s.Model,
		MaxTokens: maxTokens,
		System:    system,
		Messages:  []chatMessage{{Role: "user", Content: req.Prompt}},
	})
	if err != nil {
		return "", fmt.Errorf("encode request: %w", err)
	}

	url := strings.TrimRight(s.BaseURL, "/") + "/v1/messages"
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("anthropic-version", anthropicVersion)
	if s.APIKey != "" {
		httpReq.Header.Set("x-api-key", s.APIKey)
	}

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("post messages: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	var parsed messagesResponse
	decodeErr := json.Unmarshal(raw, &parsed)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := strings.TrimSpace(string(raw))
		if parsed.Error != nil && parsed.Error.Message != "" {
			msg = parsed.Error.Message
		}
		return "", fmt.Errorf("status %d: %s", resp.StatusCode, truncate(msg, 200))
	}
	if decodeErr != nil {
		return "", fmt.Errorf("decode response: %w", decodeErr)
	}

	var sb strings.Builder
	for _, block := range parsed.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}
