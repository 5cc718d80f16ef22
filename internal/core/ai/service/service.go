// Package service is the engine's single entry point to the AI backend. It
// throttles, caches and queues completions.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"allergen-engine/internal/core/ai/cache"
	"allergen-engine/internal/core/ai/provider"
	"allergen-engine/internal/core/ai/queue"
	"allergen-engine/internal/pkg/common"
	"allergen-engine/internal/pkg/metrics"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Params tune one completion.
type Params struct {
	MaxTokens   int
	Temperature float64
}

// Presets used by the engine.
var (
	AllergenParams = Params{MaxTokens: 2000, Temperature: 0.2}
	RecipeParams   = Params{MaxTokens: 2000, Temperature: 0.3}
)

// Options configures a Service.
type Options struct {
	// RequestsPerSecond of zero disables throttling.
	RequestsPerSecond float64
	Burst             int
}

// Service sends completions through an optional cache, limiter and queue.
type Service struct {
	provider provider.Provider
	queue    *queue.Manager
	cache    cache.Store
	limiter  *rate.Limiter
}

// NewService creates a Service. q and store may be nil.
func NewService(p provider.Provider, q *queue.Manager, store cache.Store, opts Options) *Service {
	s := &Service{provider: p, queue: q, cache: store}
	if opts.RequestsPerSecond > 0 {
		burst := opts.Burst
		if burst < 1 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst)
	}
	return s
}

// Enabled reports whether a provider is configured.
func (s *Service) Enabled() bool {
	return s != nil && s.provider != nil
}

// Model returns the provider model, or "" when disabled.
func (s *Service) Model() string {
	if !s.Enabled() {
		return ""
	}
	return s.provider.GetModel()
}

// Generate returns the completion for a system+user prompt pair.
func (s *Service) Generate(ctx context.Context, system, user string, p Params) (string, error) {
	if !s.Enabled() {
		return "", common.ErrAIUnavailable
	}
	model := s.provider.GetModel()
	key := cache.Key(model, fmt.Sprintf("%g", p.Temperature), normalizePrompt(system), normalizePrompt(user))

	if s.cache != nil {
		val, err := s.cache.Get(ctx, key)
		hit := err == nil && val != ""
		metrics.CacheLookup(s.cache.Backend(), hit)
		if hit {
			common.LogCacheHit(s.cache.Backend())
			return val, nil
		}
		if err != nil && !errors.Is(err, common.ErrCacheMiss) {
			common.LogWarn("AI cache lookup failed", zap.Error(err))
		} else {
			common.LogCacheMiss(s.cache.Backend())
		}
	}

	if s.limiter != nil {
		if err := s.limiter.Wait(ctx); err != nil {
			return "", common.Wrap(common.ErrTooManyRequests, err)
		}
	}

	if timeout := s.provider.GetTimeout(); timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	req := provider.NewRequest(system, user, p.MaxTokens, p.Temperature)
	start := time.Now()
	var resp *provider.Response
	var err error
	if s.queue != nil {
		resp, err = s.queue.Do(ctx, req)
	} else {
		resp, err = s.provider.Generate(ctx, req)
	}
	elapsed := time.Since(start)
	metrics.ObserveAIRequest(model, elapsed, err)
	common.LogAICall(model, elapsed, err)
	if err != nil {
		return "", common.Wrap(common.ErrAIUnavailable, err)
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, key, resp.Content); err != nil {
			common.LogWarn("AI cache store failed", zap.Error(err))
		}
	}
	return resp.Content, nil
}

// Completer binds p to the service so it can serve callers that only pass prompts.
func (s *Service) Completer(p Params) Completer {
	return Completer{svc: s, params: p}
}

// Completer is a Service with fixed parameters.
type Completer struct {
	svc    *Service
	params Params
}

// Complete calls Generate with the bound parameters.
func (c Completer) Complete(ctx context.Context, system, user string) (string, error) {
	return c.svc.Generate(ctx, system, user, c.params)
}

// normalizePrompt collapses runs of whitespace so equivalent prompts share a cache key.
func normalizePrompt(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
