package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/discord-scribe/internal/audio"
	"github.com/discord-scribe/internal/config"
	"github.com/discord-scribe/internal/logging"
)

// Client talks to a whisper inference server over HTTP. Audio goes up as a
// 16 kHz mono WAV; prior tokens travel in a query parameter so the server
// can seed its decoder state.
type Client struct {
	endpoint   string
	httpClient *http.Client
	timeout    time.Duration
	maxRetries int
}

// NewClient builds a whisper client from configuration.
func NewClient(cfg config.WhisperConfig) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Client{
		endpoint:   strings.TrimRight(cfg.Endpoint, "/"),
		httpClient: &http.Client{Timeout: cfg.Timeout()},
		timeout:    cfg.Timeout(),
		maxRetries: cfg.MaxRetries,
	}, nil
}

// Ready probes the server's health endpoint. The server owns the model file;
// if it cannot serve, this system cannot run, so callers treat a failed
// probe as fatal at startup.
func (c *Client) Ready(ctx context.Context) error {
	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, c.endpoint+"/healthz", nil)
	if err != nil {
		return err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("whisper server unreachable at %s: %w", c.endpoint, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("whisper server not ready: status=%d", resp.StatusCode)
	}
	return nil
}

type transcribeResponse struct {
	Segments []Segment `json:"segments"`
}

// Transcribe POSTs the clip and parses the returned segments. Transport
// errors and 5xx responses are retried with exponential backoff; anything
// else fails the call.
func (c *Client) Transcribe(ctx context.Context, samples []float32, prior []Token) ([]Segment, error) {
	wav := audio.EncodeWAV(audio.FloatPCMBytes(samples), audio.EngineSampleRate, 1, 16)

	url := c.endpoint + "/transcribe"
	if len(prior) > 0 {
		url += "?prompt_tokens=" + joinTokens(prior)
	}

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
		req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(wav))
		if err != nil {
			cancel()
			return nil, err
		}
		req.Header.Set("Content-Type", "audio/wav")

		resp, err := c.httpClient.Do(req)
		cancel()
		if err != nil {
			lastErr = err
			logging.Warnw("whisper: request failed", "attempt", attempt, "err", err)
			if !sleepBackoff(ctx, attempt) {
				return nil, ctx.Err()
			}
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			lastErr = fmt.Errorf("whisper server error: status=%d", resp.StatusCode)
			logging.Warnw("whisper: server error", "attempt", attempt, "status", resp.StatusCode)
			if !sleepBackoff(ctx, attempt) {
				return nil, ctx.Err()
			}
			continue
		}
		if resp.StatusCode != http.StatusOK {
			resp.Body.Close()
			return nil, fmt.Errorf("whisper request rejected: status=%d", resp.StatusCode)
		}

		var out transcribeResponse
		err = json.NewDecoder(resp.Body).Decode(&out)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode whisper response: %w", err)
		}
		return out.Segments, nil
	}
	return nil, lastErr
}

type tokenizeRequest struct {
	Text      string `json:"text"`
	MaxTokens int    `json:"max_tokens"`
}

type tokenizeResponse struct {
	Tokens []Token `json:"tokens"`
}

// Tokenize converts text into model tokens via the server.
func (c *Client) Tokenize(ctx context.Context, text string, maxTokens int) ([]Token, error) {
	body, err := json.Marshal(tokenizeRequest{Text: text, MaxTokens: maxTokens})
	if err != nil {
		return nil, err
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, c.endpoint+"/tokenize", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tokenize request failed: status=%d", resp.StatusCode)
	}

	var out tokenizeResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("failed to decode tokenize response: %w", err)
	}
	return out.Tokens, nil
}

func joinTokens(tokens []Token) string {
	parts := make([]string, len(tokens))
	for i, t := range tokens {
		parts[i] = strconv.Itoa(int(t))
	}
	return strings.Join(parts, ",")
}

// sleepBackoff waits 1s, 2s, 4s... between attempts; returns false if the
// context was cancelled while waiting.
func sleepBackoff(ctx context.Context, attempt int) bool {
	select {
	case <-time.After(time.Duration(1<<attempt) * time.Second):
		return true
	case <-ctx.Done():
		return false
	}
}
