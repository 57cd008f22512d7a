package llm

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// ErrEmptyResponse is returned by a completer when the provider answered
// without any text.
var ErrEmptyResponse = errors.New("llm: empty response")

// Source says where a Result's text came from.
type Source int

const (
	// SourceLive is text from the live provider.
	SourceLive Source = iota
	// SourceMock is mock text because no usable credential was given.
	SourceMock
	// SourceFallback is mock text substituted after live calls failed.
	SourceFallback
)

func (s Source) String() string {
	switch s {
	case SourceLive:
		return "live"
	case SourceMock:
		return "mock"
	case SourceFallback:
		return "fallback"
	default:
		return "unknown"
	}
}

// Result is the outcome of one gateway call.
type Result struct {
	Text     string
	Source   Source
	Reason   string
	Attempts int
}

// Degraded reports whether live calls failed and mock text was substituted.
func (r Result) Degraded() bool { return r.Source == SourceFallback }

// Options tune a Gateway.
type Options struct {
	// CallTimeout bounds each attempt. Zero means 60s.
	CallTimeout time.Duration
	// Retries is the number of extra attempts after a failed call.
	Retries int
	// Backoff is the wait before the first retry, doubled for each further
	// retry.
	Backoff     time.Duration
	Model       string
	Temperature float64
	MaxTokens   int
	// BaseURL overrides the provider endpoint.
	BaseURL string
	Logger  *slog.Logger
}

// DefaultOptions returns one retry, a 60s call timeout and a short backoff.
func DefaultOptions() Options {
	return Options{
		CallTimeout: 60 * time.Second,
		Retries:     1,
		Backoff:     500 * time.Millisecond,
		Temperature: 0.7,
		MaxTokens:   4000,
	}
}

// Gateway completes prompts for one run. It is not shared across runs, so
// credentials never outlive the run that supplied them.
type Gateway struct {
	provider ProviderID
	live     Completer
	notice   string
	opts     Options
	logger   *slog.Logger
}

// New selects the live backend for provider when credential is usable and
// the client constructs; otherwise the gateway runs in mock mode and
// Notice explains why.
func New(ctx context.Context, provider ProviderID, credential string, opts Options) *Gateway {
	g := newGateway(provider, opts)
	if provider == ProviderMock {
		g.notice = "mock provider selected"
		return g
	}
	if !UsableCredential(credential) {
		g.notice = fmt.Sprintf("no usable credential for %s", provider.DisplayName())
		g.logger.Info("provider gateway running in mock mode", "provider", provider, "reason", g.notice)
		return g
	}

	model := opts.Model
	if model == "" {
		model = provider.DefaultModel()
	}
	var (
		c   Completer
		err error
	)
	switch provider {
	case ProviderOpenAI:
		c, err = NewOpenAI(credential, model, opts)
	case ProviderAnthropic:
		c, err = NewAnthropic(credential, model, opts)
	case ProviderGemini:
		c, err = NewGemini(ctx, credential, model, opts)
	default:
		err = fmt.Errorf("unknown provider %q", provider)
	}
	if err != nil {
		g.notice = fmt.Sprintf("%s client unavailable: %v", provider.DisplayName(), err)
		g.logger.Warn("provider gateway running in mock mode", "provider", provider, "error", err)
		return g
	}
	g.live = c
	return g
}

// NewWithCompleter builds a gateway around an existing completer.
func NewWithCompleter(provider ProviderID, c Completer, opts Options) *Gateway {
	g := newGateway(provider, opts)
	g.live = c
	return g
}

func newGateway(provider ProviderID, opts Options) *Gateway {
	if opts.CallTimeout <= 0 {
		opts.CallTimeout = 60 * time.Second
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Gateway{provider: provider, opts: opts, logger: logger}
}

// Provider returns the requested provider.
func (g *Gateway) Provider() ProviderID { return g.provider }

// Live reports whether calls go to a live backend.
func (g *Gateway) Live() bool { return g.live != nil }

// Backend names the completer in use.
func (g *Gateway) Backend() string {
	if g.live == nil {
		return Mock{}.Name()
	}
	return g.live.Name()
}

// Notice explains why the gateway is in mock mode, or is empty.
func (g *Gateway) Notice() string { return g.notice }

// Complete returns text for prompt. Failed live calls are retried, then
// replaced by mock text with Source set to SourceFallback. The only error
// is the caller's context being done.
func (g *Gateway) Complete(ctx context.Context, prompt string) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, err
	}
	if g.live == nil {
		return Result{Text: MockText(prompt), Source: SourceMock, Reason: g.notice}, nil
	}

	attempts := g.opts.Retries + 1
	var last error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			if err := g.wait(ctx, i); err != nil {
				return Result{}, err
			}
		}
		start := time.Now()
		text, err := g.call(ctx, prompt)
		if err == nil {
			g.logger.Debug("provider call complete", "backend", g.live.Name(), "attempt", i+1, "took", time.Since(start))
			return Result{Text: text, Source: SourceLive, Attempts: i + 1}, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Result{}, ctxErr
		}
		last = err
		g.logger.Warn("provider call failed", "backend", g.live.Name(), "attempt", i+1, "of", attempts, "error", err)
	}

	return Result{
		Text:     MockText(prompt),
		Source:   SourceFallback,
		Reason:   fmt.Sprintf("%s failed after %d attempt(s): %v", g.provider.DisplayName(), attempts, last),
		Attempts: attempts,
	}, nil
}

func (g *Gateway) call(ctx context.Context, prompt string) (string, error) {
	cctx, cancel := context.WithTimeout(ctx, g.opts.CallTimeout)
	defer cancel()
	return g.live.Complete(cctx, prompt)
}

func (g *Gateway) wait(ctx context.Context, retry int) error {
	if g.opts.Backoff <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(g.opts.Backoff * time.Duration(1<<(retry-1)))
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
