package llm

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aretw0/marginalia/pkg/assist"
)

func TestOpenAI_Generate(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"Tighter prose."},"finish_reason":"stop"}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAI("sk-test", WithBaseURL(srv.URL+"/v1"), WithModel("gpt-test"))
	require.NoError(t, err)

	resp, err := c.Generate(context.Background(), assist.Request{
		Instruction:  "Shorten the text.",
		PrimaryLabel: "Text",
		PrimaryText:  "A very long sentence.",
	})
	require.NoError(t, err)
	assert.Equal(t, "Tighter prose.", resp.Text)
	assert.Equal(t, "gpt-test", got["model"])

	msgs := got["messages"].([]any)
	require.Len(t, msgs, 2)
	assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
	assert.Equal(t, "Shorten the text.", msgs[0].(map[string]any)["content"])
	assert.Contains(t, msgs[1].(map[string]any)["content"], "A very long sentence.")
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","choices":[]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAI("sk-test", WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)
	_, err = c.Generate(context.Background(), assist.Request{PrimaryText: "x"})
	assert.ErrorIs(t, err, ErrEmptyCompletion)
}

func TestOpenAI_GenerateImage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/images/generations", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"created":1,"data":[{"b64_json":"QUJD"}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAI("sk-test", WithBaseURL(srv.URL+"/v1"))
	require.NoError(t, err)

	res, err := c.GenerateImage(context.Background(), assist.ImageRequest{Prompt: "a fox", Kind: assist.ImageKindImage})
	require.NoError(t, err)
	assert.Equal(t, "data:image/png;base64,QUJD", res.URL)

	_, err = c.GenerateImage(context.Background(), assist.ImageRequest{Prompt: "flow", Kind: assist.ImageKindDiagram})
	assert.Error(t, err)
}

func TestNewOpenAI_RequiresKey(t *testing.T) {
	_, err := NewOpenAI("")
	assert.Error(t, err)
	_, err = NewAnthropic("")
	assert.Error(t, err)
}

func TestAnthropic_Generate(t *testing.T) {
	var got anthropicRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "key", r.Header.Get("x-api-key"))
		assert.Equal(t, anthropicAPIVersion, r.Header.Get("anthropic-version"))
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_, _ = w.Write([]byte(`{"content":[{"type":"text","text":"Hello "},{"type":"text","text":"there."}]}`))
	}))
	defer srv.Close()

	a, err := NewAnthropic("key", WithBaseURL(srv.URL))
	require.NoError(t, err)
	resp, err := a.Generate(context.Background(), assist.Request{Instruction: "Be brief.", PrimaryText: "Hi"})
	require.NoError(t, err)
	assert.Equal(t, "Hello there.", resp.Text)
	assert.Equal(t, DefaultClaudeModel, got.Model)
	assert.Equal(t, "Be brief.", got.System)
	assert.Equal(t, DefaultMaxTokens, got.MaxTokens)
}

func TestAnthropic_Errors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   string
	}{
		{"API Error", http.StatusBadRequest, `{"type":"error","error":{"type":"invalid_request_error","message":"bad"}}`, "invalid_request_error"},
		{"Status Only", http.StatusBadGateway, `<html>`, "502"},
		{"No Text", http.StatusOK, `{"content":[]}`, ErrEmptyCompletion.Error()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			a, err := NewAnthropic("key", WithBaseURL(srv.URL))
			require.NoError(t, err)
			_, err = a.Generate(context.Background(), assist.Request{PrimaryText: "Hi"})
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestParseShapes(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantLen int
		wantErr bool
	}{
		{"Plain", `{"shapes":[{"type":"geo","x":0,"y":0}]}`, 1, false},
		{"Fenced With Prose", "Here you go:\n```json\n{\"shapes\":[{\"type\":\"text\"},{\"type\":\"arrow\"}]}\n```", 2, false},
		{"Unknown Types Dropped", `{"shapes":[{"type":"video"},{"type":"geo"}]}`, 1, false},
		{"No JSON", "sorry, I cannot", 0, true},
		{"No Valid Shapes", `{"shapes":[{"type":"video"}]}`, 0, true},
		{"Broken JSON", `{"shapes":[{"type":}]}`, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			shapes, err := ParseShapes(tt.raw)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidDiagram)
				return
			}
			require.NoError(t, err)
			var list []json.RawMessage
			require.NoError(t, json.Unmarshal(shapes, &list))
			assert.Len(t, list, tt.wantLen)
		})
	}
}

func TestDiagramsAndRouter(t *testing.T) {
	gen := assist.GeneratorFunc(func(ctx context.Context, req assist.Request) (assist.Response, error) {
		assert.Contains(t, req.PrimaryText, "login flow")
		return assist.Response{Text: `{"shapes":[{"type":"geo"}]}`}, nil
	})
	r := Router{Diagram: NewDiagrams(gen, "")}

	res, err := r.GenerateImage(context.Background(), assist.ImageRequest{Prompt: "login flow", Kind: assist.ImageKindDiagram})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"type":"geo"}]`, string(res.Shapes))

	_, err = r.GenerateImage(context.Background(), assist.ImageRequest{Prompt: "a fox", Kind: assist.ImageKindImage})
	assert.Error(t, err)
}

func TestLimited(t *testing.T) {
	var calls atomic.Int32
	gen := assist.GeneratorFunc(func(ctx context.Context, req assist.Request) (assist.Response, error) {
		calls.Add(1)
		return assist.Response{Text: "ok"}, nil
	})
	l := NewLimited(gen, RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})

	_, err := l.Generate(context.Background(), assist.Request{})
	require.NoError(t, err)

	// The bucket is empty; a short deadline expires before the next token.
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err = l.Generate(ctx, assist.Request{})
	assert.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFromLookup(t *testing.T) {
	env := func(m map[string]string) func(string) string {
		return func(k string) string { return m[k] }
	}

	_, err := fromLookup(env(nil), nil)
	assert.True(t, errors.Is(err, ErrNoBackend))

	b, err := fromLookup(env(map[string]string{"OPENAI_API_KEY": "sk", "OPENAI_MODEL": "gpt-x"}), nil)
	require.NoError(t, err)
	assert.Equal(t, "gpt-x", b.Model)
	assert.NotNil(t, b.Images.(Router).Image)

	b, err = fromLookup(env(map[string]string{"OPENAI_API_KEY": "sk", "ANTHROPIC_API_KEY": "ak"}), nil)
	require.NoError(t, err)
	assert.Equal(t, DefaultClaudeModel, b.Model)

	b, err = fromLookup(env(map[string]string{"ANTHROPIC_API_KEY": "ak", "CLAUDE_MODEL": "claude-x"}), nil)
	require.NoError(t, err)
	assert.Equal(t, "claude-x", b.Model)
	assert.Nil(t, b.Images.(Router).Image)
}
