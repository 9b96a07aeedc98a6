package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/walkumentary/api/internal/cache"
	"github.com/walkumentary/api/internal/provider"
	"github.com/walkumentary/api/internal/service"
)

// TourWorker drives one tour through its phases, detached from the
// request that created it. Text generation strictly precedes audio;
// a partial success is terminal, never regressed to failure.
type TourWorker struct {
	tours        *service.TourService
	generation   *service.GenerationService
	voice        string
	speed        float64
	audioTimeout time.Duration
}

func NewTourWorker(
	tours *service.TourService,
	generation *service.GenerationService,
	voice string,
	speed float64,
	audioTimeout time.Duration,
) *TourWorker {
	return &TourWorker{
		tours:        tours,
		generation:   generation,
		voice:        voice,
		speed:        speed,
		audioTimeout: audioTimeout,
	}
}

// ProcessTask handles one tours:generate task.
func (w *TourWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload service.TourGenerateTaskPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %w", err)
	}

	tourID := payload.TourID
	log.Printf("[Worker] starting tour %s (%q)", tourID, payload.Input.Subject)

	// Step 1: queued -> text_ready, or queued -> failed.
	script, err := w.generation.GenerateScript(ctx, &payload.Input)
	if err != nil {
		log.Printf("[Worker] tour %s: content generation failed: %v", tourID, err)
		if failErr := w.tours.MarkFailed(ctx, tourID, sanitizeFailure(err)); failErr != nil {
			log.Printf("[Worker] tour %s: failed to record failure: %v", tourID, failErr)
		}
		// The fallback chain is already exhausted; an asynq retry would
		// only replay the same failures.
		return nil
	}

	if err := w.tours.MarkTextReady(ctx, tourID, script.Title, script.Content, script.Provider, script.Model); err != nil {
		return fmt.Errorf("tour %s: failed to persist text: %w", tourID, err)
	}
	log.Printf("[Worker] tour %s: text ready (%d chars via %s, cached=%v)",
		tourID, len(script.Content), script.Provider, script.Cached)

	// Step 2: text_ready -> audio_ready, bounded by the audio budget.
	// Any failure here leaves the tour at text_ready: text-only is a
	// valid terminal outcome and no user-facing error is recorded.
	voice := payload.Input.Voice
	if voice == "" {
		voice = w.voice
	}

	audioCtx, cancel := context.WithTimeout(ctx, w.audioTimeout)
	defer cancel()

	speech, err := w.generation.SynthesizeSpeech(audioCtx, script.Content, voice, w.speed)
	if err != nil {
		log.Printf("[Worker] tour %s: proceeding without audio: %v", tourID, err)
		return nil
	}

	if err := w.tours.MarkAudioReady(ctx, tourID, speech.Key, speech.Provider); err != nil {
		return fmt.Errorf("tour %s: failed to persist audio reference: %w", tourID, err)
	}
	log.Printf("[Worker] tour %s: audio ready (%d bytes via %s, cached=%v)",
		tourID, len(speech.Audio), speech.Provider, speech.Cached)
	return nil
}

// sanitizeFailure reduces an internal failure to a short diagnostic safe
// to store on the record; raw vendor error bodies stay in the logs.
func sanitizeFailure(err error) string {
	var exhausted *provider.ExhaustedError
	if errors.As(err, &exhausted) {
		return "content generation failed: all configured providers were exhausted"
	}
	if errors.Is(err, cache.ErrUnavailable) {
		return "content generation failed: cache store unavailable"
	}
	return "content generation failed"
}
