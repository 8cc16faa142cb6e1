package suggest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/keithven/seo-checker/internal/config"
)

func fakeAPI(t *testing.T, reply string, status int) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var req apiRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)
		assert.Equal(t, "user", req.Messages[1].Role)

		if status != http.StatusOK {
			http.Error(w, "nope", status)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{"message": map[string]string{"role": "assistant", "content": reply}},
			},
		})
	}))
}

func testClient(endpoint string) *Client {
	return New(config.AIConfig{
		APIKey:      "sk-test",
		Model:       "gpt-4o-mini",
		Endpoint:    endpoint,
		MaxTokens:   300,
		Temperature: 0.7,
	}, nil)
}

func TestSuggestReturnsProposal(t *testing.T) {
	reply := "Browse our complete catalogue of handmade ceramic tableware, with free shipping on orders over fifty euros and a lifetime glaze guarantee."
	server := fakeAPI(t, "  \""+reply+"\"  ", http.StatusOK)
	defer server.Close()

	s, err := testClient(server.URL).Suggest(context.Background(), Page{
		URL:             "https://example.com/shop",
		Title:           "Shop",
		MetaDescription: "Buy stuff.",
		Issues:          []string{"Meta description too short (10 chars, recommended 120-160)"},
	})
	require.NoError(t, err)

	assert.Equal(t, reply, s.Proposed) // quotes and padding stripped
	assert.Equal(t, "Buy stuff.", s.Current)
	assert.Equal(t, len(reply), s.CharacterCount)
	assert.True(t, s.WithinGuideline)
}

func TestSuggestFlagsOutOfRangeProposal(t *testing.T) {
	server := fakeAPI(t, "Too short.", http.StatusOK)
	defer server.Close()

	s, err := testClient(server.URL).Suggest(context.Background(), Page{URL: "https://example.com/"})
	require.NoError(t, err)
	assert.False(t, s.WithinGuideline)
}

func TestSuggestAPIError(t *testing.T) {
	server := fakeAPI(t, "", http.StatusTooManyRequests)
	defer server.Close()

	_, err := testClient(server.URL).Suggest(context.Background(), Page{URL: "https://example.com/"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "API error 429")
}

func TestSuggestDisabledWithoutKey(t *testing.T) {
	c := New(config.AIConfig{}, nil)
	assert.False(t, c.Enabled())

	_, err := c.Suggest(context.Background(), Page{URL: "https://example.com/"})
	assert.ErrorIs(t, err, ErrDisabled)
}

func TestUserPromptMentionsMissingDescription(t *testing.T) {
	prompt := userPrompt(Page{URL: "https://example.com/", Title: "Home"})
	assert.Contains(t, prompt, "no meta description")
	assert.True(t, strings.Contains(prompt, "Home"))
}
