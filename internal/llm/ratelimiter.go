package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// PerMinute returns a limiter admitting rpm completions per minute with
// a burst of rpm, or nil when rpm <= 0.
func PerMinute(rpm int) *rate.Limiter {
	if rpm <= 0 {
		return nil
	}
	return rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm)
}

type limitedProvider struct {
	Provider
	limiter *rate.Limiter
}

// Limit makes every completion of provider wait on limiter first. A nil
// limiter returns provider unchanged.
func Limit(provider Provider, limiter *rate.Limiter) Provider {
	if limiter == nil {
		return provider
	}
	return &limitedProvider{Provider: provider, limiter: limiter}
}

func (l *limitedProvider) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	if err := l.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit: %w", err)
	}
	return l.Provider.Complete(ctx, req)
}
