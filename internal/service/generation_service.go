package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/walkumentary/api/internal/cache"
	"github.com/walkumentary/api/internal/model"
	"github.com/walkumentary/api/internal/provider"
)

// CachedProviderID marks artifacts served from the cache, where the
// original provider is no longer knowable from raw bytes.
const CachedProviderID = "cache"

// Script is a generated narration with provenance; it is the cached
// representation of a text artifact.
type Script struct {
	Title    string `json:"title"`
	Content  string `json:"content"`
	Provider string `json:"provider"`
	Model    string `json:"model"`
	Cached   bool   `json:"-"`
}

// Speech is a synthesized audio artifact plus the cache key it lives
// under.
type Speech struct {
	Key      string
	Audio    []byte
	Provider string
	Cached   bool
}

// GenerationService wraps every expensive provider call in the
// cache-around pattern: deterministic key, get, miss -> fallback chain,
// set on complete success only. A cache hit is never revalidated against
// the origin provider; expiry is the only invalidation path.
type GenerationService struct {
	cache      cache.Store
	text       *provider.TextFallback
	audio      *provider.AudioFallback
	ttsModel   string
	contentTTL time.Duration
	audioTTL   time.Duration
}

func NewGenerationService(
	store cache.Store,
	text *provider.TextFallback,
	audio *provider.AudioFallback,
	ttsModel string,
	contentTTL, audioTTL time.Duration,
) *GenerationService {
	return &GenerationService{
		cache:      store,
		text:       text,
		audio:      audio,
		ttsModel:   ttsModel,
		contentTTL: contentTTL,
		audioTTL:   audioTTL,
	}
}

// GenerateScript returns the narration script for the given input,
// consulting the cache before any provider is invoked.
func (s *GenerationService) GenerateScript(ctx context.Context, in *model.TourInput) (*Script, error) {
	key := contentCacheKey(in)

	data, err := s.cache.Get(ctx, key)
	if err == nil {
		var script Script
		if jsonErr := json.Unmarshal(data, &script); jsonErr == nil {
			log.Printf("[Generation] content cache hit for %q", in.Subject)
			script.Cached = true
			return &script, nil
		}
		// Unreadable entry: fall through and regenerate over it.
		log.Printf("[Generation] discarding corrupt content entry %s", key)
	} else if !errors.Is(err, cache.ErrNotFound) {
		return nil, fmt.Errorf("content cache read: %w", err)
	}

	outcome, err := s.text.Generate(ctx, &provider.TextRequest{
		Subject:         in.Subject,
		City:            in.City,
		Interests:       in.Interests,
		DurationMinutes: in.DurationMinutes,
		Language:        in.Language,
	})
	if err != nil {
		return nil, err
	}

	script := &Script{
		Title:    outcome.Result.Title,
		Content:  outcome.Result.Content,
		Provider: outcome.ProviderID,
		Model:    outcome.ModelID,
	}

	buf, err := json.Marshal(script)
	if err != nil {
		return nil, fmt.Errorf("marshal script: %w", err)
	}
	if err := s.cache.Set(ctx, key, buf, s.contentTTL); err != nil {
		return nil, fmt.Errorf("content cache write: %w", err)
	}
	return script, nil
}

// SynthesizeSpeech returns audio for the exact script text, consulting
// the cache first. Audio gets the longer TTL since it is the more
// expensive artifact to regenerate.
func (s *GenerationService) SynthesizeSpeech(ctx context.Context, text, voice string, speed float64) (*Speech, error) {
	key := audioCacheKey(text, voice, speed, s.ttsModel)

	data, err := s.cache.Get(ctx, key)
	if err == nil {
		log.Printf("[Generation] audio cache hit (%d bytes)", len(data))
		return &Speech{Key: key, Audio: data, Provider: CachedProviderID, Cached: true}, nil
	}
	if !errors.Is(err, cache.ErrNotFound) {
		return nil, fmt.Errorf("audio cache read: %w", err)
	}

	outcome, err := s.audio.Synthesize(ctx, &provider.SpeechRequest{
		Text:  text,
		Voice: voice,
		Speed: speed,
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, key, outcome.Audio, s.audioTTL); err != nil {
		return nil, fmt.Errorf("audio cache write: %w", err)
	}
	return &Speech{Key: key, Audio: outcome.Audio, Provider: outcome.ProviderID}, nil
}
