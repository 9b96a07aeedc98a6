package service

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/walkumentary/api/internal/cache"
	"github.com/walkumentary/api/internal/model"
	"github.com/walkumentary/api/internal/provider"
)

// Pricing constants (USD). Estimates never invoke a provider and never
// populate the cache; the only cache interaction is a read-only probe to
// report a zero-cost hit.
const (
	openAICostPer1kTokens    = 0.000765 // gpt-4o-mini blended rate
	anthropicCostPer1kTokens = 0.001375 // claude-3-haiku blended rate
	ttsCostPer1kChars        = 0.015

	outputTokensPerMinute = 50
	charsPerMinute        = 200
	charsPerToken         = 4
)

// CostService projects generation cost from pricing constants alone.
type CostService struct {
	cache    cache.Store
	provider string
}

func NewCostService(store cache.Store, defaultProvider string) *CostService {
	return &CostService{cache: store, provider: defaultProvider}
}

// Estimate prices a prospective tour without creating a job. A cached
// script means the text component is free; audio is priced from the
// requested duration since the script text is unknown until generated.
func (s *CostService) Estimate(ctx context.Context, in *model.TourInput) (*model.CostEstimateResponse, error) {
	cached := false
	if _, err := s.cache.Get(ctx, contentCacheKey(in)); err == nil {
		cached = true
	} else if !errors.Is(err, cache.ErrNotFound) {
		// Estimation is best-effort: an unreachable cache just means we
		// cannot report a hit.
		log.Printf("[Cost] cache probe failed: %v", err)
	}

	prompt := provider.BuildTourPrompt(&provider.TextRequest{
		Subject:         in.Subject,
		City:            in.City,
		Interests:       in.Interests,
		DurationMinutes: in.DurationMinutes,
		Language:        in.Language,
	})

	inputTokens := len(prompt) / charsPerToken
	outputTokens := in.DurationMinutes * outputTokensPerMinute

	rate, err := textRate(s.provider)
	if err != nil {
		return nil, err
	}

	textCost := float64(inputTokens+outputTokens) / 1000 * rate
	if cached {
		textCost = 0
	}

	chars := in.DurationMinutes * charsPerMinute
	audioCost := float64(chars) / 1000 * ttsCostPer1kChars

	return &model.CostEstimateResponse{
		ContentGeneration: model.CostComponent{
			EstimatedCost: round4(textCost),
			Provider:      s.provider,
			InputTokens:   inputTokens,
			OutputTokens:  outputTokens,
		},
		AudioGeneration: model.CostComponent{
			EstimatedCost: round4(audioCost),
			Characters:    chars,
		},
		TotalEstimatedCost: round4(textCost + audioCost),
		Cached:             cached,
	}, nil
}

func textRate(providerID string) (float64, error) {
	switch providerID {
	case "openai":
		return openAICostPer1kTokens, nil
	case "anthropic":
		return anthropicCostPer1kTokens, nil
	default:
		return 0, fmt.Errorf("no pricing for provider %q", providerID)
	}
}

func round4(v float64) float64 {
	return float64(int(v*10000+0.5)) / 10000
}
