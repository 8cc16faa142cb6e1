// Package suggest generates meta description rewrites through an
// OpenAI-compatible chat completions API.
package suggest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/keithven/seo-checker/internal/config"
	"github.com/keithven/seo-checker/internal/seo"
)

// ErrDisabled is returned when no API key is configured.
var ErrDisabled = errors.New("suggestions disabled: no API key configured")

const systemPrompt = `You are an SEO copywriter. Rewrite meta descriptions so they
are between 120 and 160 characters, describe the page accurately, read
naturally and end with punctuation. Respond with the rewritten
description only, no quotes and no commentary.`

// Page is the context handed to the model for one rewrite.
type Page struct {
	URL             string
	Title           string
	MetaDescription string
	Issues          []string
}

// Suggestion is a proposed replacement description.
type Suggestion struct {
	URL             string `json:"url"`
	Current         string `json:"current"`
	Proposed        string `json:"proposed"`
	CharacterCount  int    `json:"characterCount"`
	WithinGuideline bool   `json:"withinGuideline"`
}

// Client talks to an OpenAI-compatible chat completions endpoint.
type Client struct {
	cfg    config.AIConfig
	client *http.Client
	log    *zap.Logger
}

// New creates a suggestion client from the AI configuration.
func New(cfg config.AIConfig, log *zap.Logger) *Client {
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 60 * time.Second},
		log:    log,
	}
}

// Enabled reports whether the client can make requests.
func (c *Client) Enabled() bool { return c.cfg.Enabled() }

type apiRequest struct {
	Model       string       `json:"model"`
	Messages    []apiMessage `json:"messages"`
	MaxTokens   int          `json:"max_tokens"`
	Temperature *float64     `json:"temperature,omitempty"`
}

type apiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type apiResponse struct {
	Choices []struct {
		Message apiMessage `json:"message"`
	} `json:"choices"`
}

// Suggest asks the model for a replacement description for page.
func (c *Client) Suggest(ctx context.Context, page Page) (*Suggestion, error) {
	if !c.Enabled() {
		return nil, ErrDisabled
	}

	body, err := json.Marshal(apiRequest{
		Model: c.cfg.Model,
		Messages: []apiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(page)},
		},
		MaxTokens:   c.cfg.MaxTokens,
		Temperature: &c.cfg.Temperature,
	})
	if err != nil {
		return nil, fmt.Errorf("building request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("sending request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("API error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("parsing response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return nil, fmt.Errorf("empty response from model")
	}

	proposed := strings.TrimSpace(strings.Trim(strings.TrimSpace(parsed.Choices[0].Message.Content), `"`))
	if proposed == "" {
		return nil, fmt.Errorf("model returned an empty suggestion")
	}

	n := len(proposed)
	s := &Suggestion{
		URL:             page.URL,
		Current:         page.MetaDescription,
		Proposed:        proposed,
		CharacterCount:  n,
		WithinGuideline: n >= seo.MetaDescMinLength && n <= seo.MetaDescMaxLength,
	}
	if !s.WithinGuideline {
		c.log.Warn("suggestion outside length guideline",
			zap.String("url", page.URL),
			zap.Int("length", n))
	}
	return s, nil
}

func userPrompt(page Page) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Page URL: %s\n", page.URL)
	fmt.Fprintf(&b, "Page title: %s\n", page.Title)
	if page.MetaDescription != "" {
		fmt.Fprintf(&b, "Current meta description: %s\n", page.MetaDescription)
	} else {
		b.WriteString("The page has no meta description yet.\n")
	}
	if len(page.Issues) > 0 {
		fmt.Fprintf(&b, "Known issues: %s\n", strings.Join(page.Issues, "; "))
	}
	b.WriteString("Write a replacement meta description.")
	return b.String()
}
