package provider

import (
	"context"
	"log"
)

// Fallback coordinators try providers in fixed priority order: first
// success wins, every failure moves on to the next candidate. Order is
// static configuration, never reordered by past failures, and no
// speculative parallel calls are made.

// TextOutcome is a successful text generation plus provenance.
type TextOutcome struct {
	Result     *TextResult
	ProviderID string
	ModelID    string
}

type TextFallback struct {
	chain []TextGenerator
}

func NewTextFallback(chain ...TextGenerator) *TextFallback {
	return &TextFallback{chain: chain}
}

func (f *TextFallback) Generate(ctx context.Context, req *TextRequest) (*TextOutcome, error) {
	var failures []error
	for _, p := range f.chain {
		result, err := p.GenerateTour(ctx, req)
		if err != nil {
			log.Printf("[Fallback] text provider %s failed: %v", p.Name(), err)
			failures = append(failures, err)
			continue
		}
		return &TextOutcome{Result: result, ProviderID: p.Name(), ModelID: p.Model()}, nil
	}
	return nil, &ExhaustedError{Capability: "text", Failures: failures}
}

// AudioOutcome is a successful synthesis plus provenance.
type AudioOutcome struct {
	Audio      []byte
	ProviderID string
}

type AudioFallback struct {
	chain []AudioSynthesizer
}

func NewAudioFallback(chain ...AudioSynthesizer) *AudioFallback {
	return &AudioFallback{chain: chain}
}

func (f *AudioFallback) Synthesize(ctx context.Context, req *SpeechRequest) (*AudioOutcome, error) {
	var failures []error
	for _, p := range f.chain {
		audio, err := p.SynthesizeSpeech(ctx, req)
		if err != nil {
			log.Printf("[Fallback] audio provider %s failed: %v", p.Name(), err)
			failures = append(failures, err)
			continue
		}
		return &AudioOutcome{Audio: audio, ProviderID: p.Name()}, nil
	}
	return nil, &ExhaustedError{Capability: "audio", Failures: failures}
}
