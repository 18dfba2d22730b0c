package oracle

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"scalper/internal/config"
)

func geminiReply(text string) map[string]any {
	return map[string]any{
		"candidates": []map[string]any{{
			"content": map[string]any{
				"parts": []map[string]any{{"text": text}},
			},
		}},
	}
}

func TestGenerate(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(geminiReply(`{"signal": "BUY"}`))
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, "key-1", "gemini-2.0-flash", 2*time.Second)
	text, err := c.Generate(context.Background(), Request{
		System:      "be brief",
		Prompt:      "analyze",
		Attachments: []Attachment{{Name: "candles_m1.csv", MIME: "text/csv", Data: []byte("a,b\n1,2\n")}},
	})
	require.NoError(t, err)
	assert.Equal(t, `{"signal": "BUY"}`, text)
	assert.Equal(t, "/v1beta/models/gemini-2.0-flash:generateContent", gotPath)
	assert.Equal(t, "key-1", gotKey)

	// Structured output must be requested on every call.
	genCfg, ok := gotBody["generationConfig"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "application/json", genCfg["response_mime_type"])
	assert.NotNil(t, genCfg["response_schema"])
	assert.NotNil(t, gotBody["system_instruction"])
}

func TestGenerateRetriesOn429(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "quota"}})
			return
		}
		json.NewEncoder(w).Encode(geminiReply("ok"))
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, "k", "m", 2*time.Second)
	text, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Equal(t, int32(2), calls.Load())
}

func TestGenerateGivesUpAfterRetries(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "0")
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, "k", "m", 2*time.Second)
	c.MaxRetries = 1
	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status=503")
}

func TestGenerateNoRetryOn400(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadRequest)
		json.NewEncoder(w).Encode(map[string]any{"error": map[string]any{"message": "bad schema"}})
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, "k", "m", 2*time.Second)
	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "bad schema")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGenerateEmptyCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"candidates": []any{}})
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, "k", "m", 2*time.Second)
	_, err := c.Generate(context.Background(), Request{Prompt: "p"})
	assert.Error(t, err)
}

func TestNewGeminiClientDefaultTimeout(t *testing.T) {
	c := NewGeminiClient("", "k", "m", 0)
	assert.Equal(t, time.Minute, c.httpClient.Timeout)
}

func TestGenerateConcurrentCalls(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(geminiReply("ok"))
	}))
	defer srv.Close()

	c := NewGeminiClient(srv.URL, "k", "m", 2*time.Second)
	var wg sync.WaitGroup
	errs := make([]error, 4)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Generate(context.Background(), Request{Prompt: "p"})
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestBuildProviders(t *testing.T) {
	cfg := config.OracleConfig{
		Model:          "shared-model",
		TimeoutSeconds: 30,
		Endpoints: []config.OracleEndpoint{
			{ID: "a", APIKey: "k1", Enabled: true},
			{ID: "b", APIKey: "k2", Model: "own-model", Enabled: true},
			{ID: "c", APIKey: "k3", Enabled: false},
		},
	}
	providers := BuildProviders(cfg)
	require.Len(t, providers, 2)
	assert.Equal(t, "a", providers[0].ID())
	assert.Equal(t, "b", providers[1].ID())
	assert.True(t, providers[0].Enabled())
}
