package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"github.com/walkumentary/api/internal/cache"
	"github.com/walkumentary/api/internal/model"
)

const (
	TaskTypeTourGenerate = "tours:generate"

	tourKeyPrefix = "tour:"
	tourQueue     = "tours"
)

var (
	ErrTourNotFound      = errors.New("tour not found")
	ErrAudioNotReady     = errors.New("audio not ready")
	ErrInvalidTransition = errors.New("invalid phase transition")
)

// TaskEnqueuer is the slice of *asynq.Client the service needs; tests
// substitute a stub so no broker is required.
type TaskEnqueuer interface {
	Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// TourGenerateTaskPayload is the wire format between the creation request
// and the detached orchestration worker. The tour record itself is the
// only other channel of communication.
type TourGenerateTaskPayload struct {
	TourID string          `json:"tourId"`
	Input  model.TourInput `json:"input"`
}

// TourService owns tour records: creation, status snapshots and the
// monotonic phase transitions driven by the orchestration worker.
// Records are persisted without expiry; retention is the caller's
// concern, never this service's.
type TourService struct {
	store   cache.Store
	enqueue TaskEnqueuer
}

func NewTourService(store cache.Store, enqueuer TaskEnqueuer) *TourService {
	return &TourService{store: store, enqueue: enqueuer}
}

// Create persists a queued tour and hands orchestration off to the worker
// queue. The caller gets the identifier back immediately and is never
// blocked on provider latency.
func (s *TourService) Create(ctx context.Context, in *model.TourInput) (*model.Tour, error) {
	now := time.Now().UTC()
	tour := &model.Tour{
		ID:        uuid.New().String(),
		Input:     *in,
		Phase:     model.PhaseQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if err := s.saveTour(ctx, tour); err != nil {
		return nil, fmt.Errorf("failed to save tour: %w", err)
	}

	task, err := newTourGenerateTask(tour.ID, in)
	if err != nil {
		return nil, fmt.Errorf("failed to create task: %w", err)
	}

	// MaxRetry is zero on purpose: retry policy lives in the provider
	// fallback chain, not in the queue.
	_, err = s.enqueue.Enqueue(task,
		asynq.Queue(tourQueue),
		asynq.MaxRetry(0),
		asynq.Retention(24*time.Hour),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue task: %w", err)
	}

	return tour, nil
}

// Get returns the current durable snapshot of a tour.
func (s *TourService) Get(ctx context.Context, tourID string) (*model.Tour, error) {
	return s.getTour(ctx, tourID)
}

// Status returns the lightweight polling view of a tour.
func (s *TourService) Status(ctx context.Context, tourID string) (*model.TourStatusResponse, error) {
	tour, err := s.getTour(ctx, tourID)
	if err != nil {
		return nil, err
	}
	return &model.TourStatusResponse{
		TourID:      tour.ID,
		Phase:       tour.Phase,
		Title:       tour.Title,
		Progress:    phaseProgress(tour.Phase),
		HasAudio:    tour.HasAudio(),
		ErrorDetail: tour.ErrorDetail,
		CreatedAt:   tour.CreatedAt,
		UpdatedAt:   tour.UpdatedAt,
	}, nil
}

// MarkTextReady advances queued -> text_ready, recording the script and
// its provenance in one durable write. Title and script are set exactly
// once; any other starting phase is rejected.
func (s *TourService) MarkTextReady(ctx context.Context, tourID, title, scriptText, providerID, modelID string) error {
	tour, err := s.getTour(ctx, tourID)
	if err != nil {
		return err
	}
	if tour.Phase != model.PhaseQueued {
		return fmt.Errorf("%w: %s -> text_ready", ErrInvalidTransition, tour.Phase)
	}

	tour.Phase = model.PhaseTextReady
	tour.Title = title
	tour.ScriptText = scriptText
	tour.TextProviderID = providerID
	tour.TextModelID = modelID
	tour.DurationMinutesActual = estimateNarrationMinutes(scriptText)
	tour.UpdatedAt = time.Now().UTC()
	return s.saveTour(ctx, tour)
}

// MarkAudioReady advances text_ready -> audio_ready with the cache key of
// the synthesized payload.
func (s *TourService) MarkAudioReady(ctx context.Context, tourID, audioKey, providerID string) error {
	tour, err := s.getTour(ctx, tourID)
	if err != nil {
		return err
	}
	if tour.Phase != model.PhaseTextReady {
		return fmt.Errorf("%w: %s -> audio_ready", ErrInvalidTransition, tour.Phase)
	}

	tour.Phase = model.PhaseAudioReady
	tour.AudioReference = audioKey
	tour.AudioProviderID = providerID
	tour.UpdatedAt = time.Now().UTC()
	return s.saveTour(ctx, tour)
}

// MarkFailed is the only path to zero usable output and is reachable from
// queued alone: once text exists the tour never regresses to failed.
func (s *TourService) MarkFailed(ctx context.Context, tourID, detail string) error {
	tour, err := s.getTour(ctx, tourID)
	if err != nil {
		return err
	}
	if tour.Phase != model.PhaseQueued {
		return fmt.Errorf("%w: %s -> failed", ErrInvalidTransition, tour.Phase)
	}

	tour.Phase = model.PhaseFailed
	tour.ErrorDetail = detail
	tour.UpdatedAt = time.Now().UTC()
	return s.saveTour(ctx, tour)
}

// GetAudio resolves the audio reference into the cached payload.
// A tour that has not reached audio_ready yields ErrAudioNotReady,
// distinct from hard failures.
func (s *TourService) GetAudio(ctx context.Context, tourID string) ([]byte, error) {
	tour, err := s.getTour(ctx, tourID)
	if err != nil {
		return nil, err
	}
	if !tour.HasAudio() {
		return nil, ErrAudioNotReady
	}

	data, err := s.store.Get(ctx, tour.AudioReference)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			// The cached payload expired under the record.
			return nil, ErrAudioNotReady
		}
		return nil, fmt.Errorf("failed to read audio payload: %w", err)
	}
	return data, nil
}

func (s *TourService) saveTour(ctx context.Context, tour *model.Tour) error {
	data, err := json.Marshal(tour)
	if err != nil {
		return err
	}
	// ttl 0: records are never expired or deleted by this service.
	return s.store.Set(ctx, tourKeyPrefix+tour.ID, data, 0)
}

func (s *TourService) getTour(ctx context.Context, tourID string) (*model.Tour, error) {
	data, err := s.store.Get(ctx, tourKeyPrefix+tourID)
	if err != nil {
		if errors.Is(err, cache.ErrNotFound) {
			return nil, ErrTourNotFound
		}
		return nil, err
	}

	var tour model.Tour
	if err := json.Unmarshal(data, &tour); err != nil {
		return nil, err
	}
	return &tour, nil
}

func newTourGenerateTask(tourID string, in *model.TourInput) (*asynq.Task, error) {
	data, err := json.Marshal(TourGenerateTaskPayload{TourID: tourID, Input: *in})
	if err != nil {
		return nil, err
	}
	return asynq.NewTask(TaskTypeTourGenerate, data), nil
}

func phaseProgress(phase model.TourPhase) int {
	switch phase {
	case model.PhaseQueued:
		return 50
	case model.PhaseTextReady:
		return 80
	case model.PhaseAudioReady:
		return 100
	default:
		return 0
	}
}

// estimateNarrationMinutes approximates spoken length at 150 words per
// minute.
func estimateNarrationMinutes(script string) int {
	words := len(strings.Fields(script))
	if words == 0 {
		return 0
	}
	minutes := (words + 149) / 150
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
