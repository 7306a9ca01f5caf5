package vision

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type capturedRequest struct {
	Model     string `json:"model"`
	MaxTokens int    `json:"max_tokens"`
	Messages  []struct {
		Role    string          `json:"role"`
		Content json.RawMessage `json:"content"`
	} `json:"messages"`
}

func newServer(t *testing.T, status int, reply string, captured *capturedRequest, auth *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		if auth != nil {
			*auth = r.Header.Get("Authorization")
		}
		if captured != nil {
			require.NoError(t, json.NewDecoder(r.Body).Decode(captured))
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(reply))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const okReply = `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"  A person walks into a room. "},"finish_reason":"stop"}]}`

func TestDescribeSendsImagePartsInOrder(t *testing.T) {
	var req capturedRequest
	var auth string
	srv := newServer(t, http.StatusOK, okReply, &req, &auth)

	c := NewOpenAIClient(Config{
		Credential: "sk-test",
		BaseURL:    srv.URL + "/v1",
		Model:      "gpt-4o",
		MaxTokens:  1200,
	})

	text, err := c.Describe(context.Background(), "describe the frames", []string{"https://x/1.png", "https://x/2.png"})
	require.NoError(t, err)
	assert.Equal(t, "A person walks into a room.", text)
	assert.Equal(t, "Bearer sk-test", auth)

	assert.Equal(t, "gpt-4o", req.Model)
	assert.Equal(t, 1200, req.MaxTokens)
	require.Len(t, req.Messages, 2)
	assert.Equal(t, "system", req.Messages[0].Role)

	var parts []struct {
		Type     string `json:"type"`
		ImageURL struct {
			URL string `json:"url"`
		} `json:"image_url"`
	}
	require.NoError(t, json.Unmarshal(req.Messages[1].Content, &parts))
	require.Len(t, parts, 2)
	assert.Equal(t, "image_url", parts[0].Type)
	assert.Equal(t, "https://x/1.png", parts[0].ImageURL.URL)
	assert.Equal(t, "https://x/2.png", parts[1].ImageURL.URL)
}

func TestDescribeServiceError(t *testing.T) {
	srv := newServer(t, http.StatusTooManyRequests, `{"error":{"message":"rate limited","type":"requests"}}`, nil, nil)
	c := NewOpenAIClient(Config{Credential: "sk-test", BaseURL: srv.URL + "/v1"})

	_, err := c.Describe(context.Background(), "describe", []string{"https://x/1.png"})
	assert.Error(t, err)
}

func TestDescribeNoChoices(t *testing.T) {
	srv := newServer(t, http.StatusOK, `{"choices":[]}`, nil, nil)
	c := NewOpenAIClient(Config{Credential: "sk-test", BaseURL: srv.URL + "/v1"})

	_, err := c.Describe(context.Background(), "describe", []string{"https://x/1.png"})
	assert.Error(t, err)
}

func TestSummarizeUsesSummaryModel(t *testing.T) {
	var req capturedRequest
	srv := newServer(t, http.StatusOK, okReply, &req, nil)
	c := NewOpenAIClient(Config{
		Credential:   "sk-test",
		BaseURL:      srv.URL + "/v1",
		Model:        "gpt-4o",
		SummaryModel: "gpt-4o-mini",
	})

	_, err := c.Summarize(context.Background(), "combine", "part one\npart two")
	require.NoError(t, err)
	assert.Equal(t, "gpt-4o-mini", req.Model)

	var content string
	require.NoError(t, json.Unmarshal(req.Messages[1].Content, &content))
	assert.Equal(t, "part one\npart two", content)
}
