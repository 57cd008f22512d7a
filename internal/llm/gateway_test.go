package llm

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scripted fails the first n calls, then answers with text.
type scripted struct {
	failures int
	text     string
	calls    int
	block    bool
}

func (s *scripted) Name() string { return "scripted" }

func (s *scripted) Complete(ctx context.Context, _ string) (string, error) {
	s.calls++
	if s.block {
		<-ctx.Done()
		return "", ctx.Err()
	}
	if s.calls <= s.failures {
		return "", errors.New("quota exceeded")
	}
	return s.text, nil
}

func TestGateway_NoCredentialUsesMock(t *testing.T) {
	g := New(context.Background(), ProviderOpenAI, "", Options{})
	assert.False(t, g.Live())
	assert.Contains(t, g.Notice(), "OpenAI")

	res, err := g.Complete(context.Background(), "Section heading: Setup")
	require.NoError(t, err)
	assert.Equal(t, SourceMock, res.Source)
	assert.False(t, res.Degraded())
	assert.Equal(t, MockText("Section heading: Setup"), res.Text)
}

func TestGateway_PlaceholderCredentialUsesMock(t *testing.T) {
	for _, key := range []string{"your-openai-key-here", "sk-...", "  "} {
		g := New(context.Background(), ProviderOpenAI, key, Options{})
		assert.False(t, g.Live(), key)
	}
}

func TestGateway_LiveSuccess(t *testing.T) {
	c := &scripted{text: "live text"}
	g := NewWithCompleter(ProviderOpenAI, c, Options{Retries: 1})

	res, err := g.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, SourceLive, res.Source)
	assert.Equal(t, "live text", res.Text)
	assert.Equal(t, 1, res.Attempts)
}

func TestGateway_RetryThenSuccess(t *testing.T) {
	c := &scripted{failures: 1, text: "second time"}
	g := NewWithCompleter(ProviderOpenAI, c, Options{Retries: 1})

	res, err := g.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.Equal(t, SourceLive, res.Source)
	assert.Equal(t, 2, res.Attempts)
	assert.Equal(t, 2, c.calls)
}

func TestGateway_FallbackAfterTwoFailures(t *testing.T) {
	c := &scripted{failures: 10}
	g := NewWithCompleter(ProviderAnthropic, c, Options{Retries: 1})

	res, err := g.Complete(context.Background(), "Section heading: Usage")
	require.NoError(t, err)
	assert.True(t, res.Degraded())
	assert.Equal(t, SourceFallback, res.Source)
	assert.Equal(t, 2, c.calls, "one call plus one retry")
	assert.Contains(t, res.Reason, "quota exceeded")
	assert.Equal(t, MockText("Section heading: Usage"), res.Text)
}

func TestGateway_CallTimeoutCountsAsFailure(t *testing.T) {
	c := &scripted{block: true}
	g := NewWithCompleter(ProviderGemini, c, Options{CallTimeout: 10 * time.Millisecond, Retries: 1})

	res, err := g.Complete(context.Background(), "p")
	require.NoError(t, err)
	assert.True(t, res.Degraded())
	assert.Equal(t, 2, c.calls)
}

func TestGateway_CallerCancellationIsAnError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := NewWithCompleter(ProviderOpenAI, &scripted{text: "x"}, Options{})
	_, err := g.Complete(ctx, "p")
	require.ErrorIs(t, err, context.Canceled)
}

func TestGateway_BackoffHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	g := NewWithCompleter(ProviderOpenAI, &scripted{failures: 10}, Options{Retries: 1, Backoff: time.Hour})
	_, err := g.Complete(ctx, "p")
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestParseProvider(t *testing.T) {
	tests := []struct {
		in    string
		want  ProviderID
		known bool
	}{
		{"openai", ProviderOpenAI, true},
		{"OpenAI GPT-4", ProviderOpenAI, true},
		{"Anthropic Claude", ProviderAnthropic, true},
		{"claude", ProviderAnthropic, true},
		{"Google Gemini", ProviderGemini, true},
		{"gemini", ProviderGemini, true},
		{"", ProviderMock, true},
		{"mistral", ProviderMock, false},
	}
	for _, tc := range tests {
		got, ok := ParseProvider(tc.in)
		assert.Equal(t, tc.want, got, tc.in)
		assert.Equal(t, tc.known, ok, tc.in)
	}
}

func TestProviderChoices(t *testing.T) {
	assert.Equal(t, "openai, anthropic, gemini, mock", ProviderChoices())
	for _, p := range Providers {
		got, ok := ParseProvider(string(p))
		assert.True(t, ok, p)
		assert.Equal(t, p, got)
	}
}

// ---------------------------------------------------------------------------
// Chat-completions client against a fake server
// ---------------------------------------------------------------------------

func TestChatClient_Complete(t *testing.T) {
	var gotAuth, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotPath = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4",
			"choices":[{"index":0,"finish_reason":"stop","message":{"role":"assistant","content":"  generated body  "}}]}`))
	}))
	defer srv.Close()

	c, err := NewOpenAI("sk-test", "gpt-4", Options{BaseURL: srv.URL + "/"})
	require.NoError(t, err)

	text, err := c.Complete(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "generated body", text)
	assert.Equal(t, "Bearer sk-test", gotAuth)
	assert.True(t, strings.HasSuffix(gotPath, "/chat/completions"), gotPath)
	assert.Equal(t, "openai:gpt-4", c.Name())
}

func TestGateway_ServerErrorsFallBackWithoutSDKRetries(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":{"message":"boom","type":"server_error"}}`))
	}))
	defer srv.Close()

	g := New(context.Background(), ProviderOpenAI, "sk-test", Options{BaseURL: srv.URL + "/", Retries: 1})
	require.True(t, g.Live())

	res, err := g.Complete(context.Background(), "Section heading: Intro")
	require.NoError(t, err)
	assert.True(t, res.Degraded())
	assert.Equal(t, int32(2), hits.Load())
}

func TestChatClient_EmptyChoices(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"c1","object":"chat.completion","created":1,"model":"gpt-4","choices":[]}`))
	}))
	defer srv.Close()

	c, err := NewAnthropic("key", "claude-3-sonnet-20240229", Options{BaseURL: srv.URL + "/"})
	require.NoError(t, err)
	_, err = c.Complete(context.Background(), "hello")
	require.ErrorIs(t, err, ErrEmptyResponse)
}
