package worker

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walkumentary/api/internal/cache"
	"github.com/walkumentary/api/internal/model"
	"github.com/walkumentary/api/internal/provider"
	"github.com/walkumentary/api/internal/service"
)

type stubTextGenerator struct {
	result *provider.TextResult
	err    error
	calls  int
}

func (s *stubTextGenerator) Name() string  { return "openai" }
func (s *stubTextGenerator) Model() string { return "gpt-4o-mini" }

func (s *stubTextGenerator) GenerateTour(_ context.Context, _ *provider.TextRequest) (*provider.TextResult, error) {
	s.calls++
	return s.result, s.err
}

type stubSynthesizer struct {
	audio  []byte
	err    error
	slow   bool
	gotReq *provider.SpeechRequest
	calls  int
}

func (s *stubSynthesizer) Name() string { return "openai" }

func (s *stubSynthesizer) SynthesizeSpeech(ctx context.Context, req *provider.SpeechRequest) ([]byte, error) {
	s.calls++
	s.gotReq = req
	if s.slow {
		<-ctx.Done()
		return nil, &provider.Error{Provider: "openai", Kind: provider.KindTimeout, Err: ctx.Err()}
	}
	return s.audio, s.err
}

type stubEnqueuer struct{}

func (stubEnqueuer) Enqueue(*asynq.Task, ...asynq.Option) (*asynq.TaskInfo, error) {
	return &asynq.TaskInfo{}, nil
}

type workerFixture struct {
	worker *TourWorker
	tours  *service.TourService
	store  *cache.MemoryStore
	text   *stubTextGenerator
	audio  *stubSynthesizer
}

func newWorkerFixture(text *stubTextGenerator, audio *stubSynthesizer, audioTimeout time.Duration) *workerFixture {
	store := cache.NewMemoryStore()
	tours := service.NewTourService(store, stubEnqueuer{})
	generation := service.NewGenerationService(
		store,
		provider.NewTextFallback(text),
		provider.NewAudioFallback(audio),
		"tts-1",
		time.Hour, time.Hour,
	)
	return &workerFixture{
		worker: NewTourWorker(tours, generation, "alloy", 1.0, audioTimeout),
		tours:  tours,
		store:  store,
		text:   text,
		audio:  audio,
	}
}

func (f *workerFixture) createTour(t *testing.T, in *model.TourInput) *asynq.Task {
	t.Helper()
	tour, err := f.tours.Create(context.Background(), in)
	require.NoError(t, err)

	payload, err := json.Marshal(service.TourGenerateTaskPayload{TourID: tour.ID, Input: *in})
	require.NoError(t, err)
	return asynq.NewTask(service.TaskTypeTourGenerate, payload)
}

func tourIDFromTask(t *testing.T, task *asynq.Task) string {
	t.Helper()
	var payload service.TourGenerateTaskPayload
	require.NoError(t, json.Unmarshal(task.Payload(), &payload))
	return payload.TourID
}

func TestProcessTaskFullSuccess(t *testing.T) {
	text := &stubTextGenerator{result: &provider.TextResult{Title: "Eiffel Tower Tour", Content: "Welcome to Paris."}}
	audio := &stubSynthesizer{audio: []byte("mp3-bytes")}
	f := newWorkerFixture(text, audio, time.Minute)

	in := &model.TourInput{Subject: "Eiffel Tower", City: "Paris", DurationMinutes: 30, Language: "en"}
	task := f.createTour(t, in)

	require.NoError(t, f.worker.ProcessTask(context.Background(), task))

	tour, err := f.tours.Get(context.Background(), tourIDFromTask(t, task))
	require.NoError(t, err)
	assert.Equal(t, model.PhaseAudioReady, tour.Phase)
	assert.Equal(t, "Eiffel Tower Tour", tour.Title)
	assert.Equal(t, "Welcome to Paris.", tour.ScriptText)
	assert.Equal(t, "openai", tour.TextProviderID)
	assert.Equal(t, "gpt-4o-mini", tour.TextModelID)
	assert.Equal(t, "openai", tour.AudioProviderID)
	assert.Empty(t, tour.ErrorDetail)

	// The audio reference resolves to the synthesized payload.
	data, err := f.tours.GetAudio(context.Background(), tour.ID)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3-bytes"), data)

	// The worker passed the configured voice down.
	require.NotNil(t, f.audio.gotReq)
	assert.Equal(t, "alloy", f.audio.gotReq.Voice)
}

func TestProcessTaskRequestedVoiceWins(t *testing.T) {
	text := &stubTextGenerator{result: &provider.TextResult{Title: "T", Content: "C"}}
	audio := &stubSynthesizer{audio: []byte("mp3")}
	f := newWorkerFixture(text, audio, time.Minute)

	in := &model.TourInput{Subject: "X", DurationMinutes: 30, Language: "en", Voice: "nova"}
	task := f.createTour(t, in)

	require.NoError(t, f.worker.ProcessTask(context.Background(), task))
	assert.Equal(t, "nova", f.audio.gotReq.Voice)
}

func TestProcessTaskTextFailureMarksFailed(t *testing.T) {
	text := &stubTextGenerator{err: &provider.Error{Provider: "openai", Kind: provider.KindTransient, Err: errors.New("503")}}
	audio := &stubSynthesizer{audio: []byte("mp3")}
	f := newWorkerFixture(text, audio, time.Minute)

	task := f.createTour(t, &model.TourInput{Subject: "X", DurationMinutes: 30, Language: "en"})

	// nil: the fallback chain already exhausted its options, a queue
	// retry would replay the same failures.
	require.NoError(t, f.worker.ProcessTask(context.Background(), task))

	tour, err := f.tours.Get(context.Background(), tourIDFromTask(t, task))
	require.NoError(t, err)
	assert.Equal(t, model.PhaseFailed, tour.Phase)
	assert.Equal(t, "content generation failed: all configured providers were exhausted", tour.ErrorDetail)
	assert.NotContains(t, tour.ErrorDetail, "503", "raw vendor errors stay out of the record")
	assert.Equal(t, 0, audio.calls, "audio must not run after a text failure")
}

func TestProcessTaskAudioFailureLeavesTextReady(t *testing.T) {
	text := &stubTextGenerator{result: &provider.TextResult{Title: "T", Content: "C"}}
	audio := &stubSynthesizer{err: &provider.Error{Provider: "openai", Kind: provider.KindTransient, Err: errors.New("boom")}}
	f := newWorkerFixture(text, audio, time.Minute)

	task := f.createTour(t, &model.TourInput{Subject: "X", DurationMinutes: 30, Language: "en"})

	require.NoError(t, f.worker.ProcessTask(context.Background(), task))

	tour, err := f.tours.Get(context.Background(), tourIDFromTask(t, task))
	require.NoError(t, err)
	assert.Equal(t, model.PhaseTextReady, tour.Phase)
	assert.Equal(t, "T", tour.Title)
	assert.Empty(t, tour.ErrorDetail, "text-only is a valid terminal outcome, not an error")
	assert.Empty(t, tour.AudioReference)
}

func TestProcessTaskAudioTimeoutLeavesTextReady(t *testing.T) {
	text := &stubTextGenerator{result: &provider.TextResult{Title: "T", Content: "C"}}
	audio := &stubSynthesizer{slow: true}
	f := newWorkerFixture(text, audio, 20*time.Millisecond)

	task := f.createTour(t, &model.TourInput{Subject: "X", DurationMinutes: 30, Language: "en"})

	require.NoError(t, f.worker.ProcessTask(context.Background(), task))

	tour, err := f.tours.Get(context.Background(), tourIDFromTask(t, task))
	require.NoError(t, err)
	assert.Equal(t, model.PhaseTextReady, tour.Phase)
	assert.Empty(t, tour.ErrorDetail)
}

func TestProcessTaskCachedScriptReused(t *testing.T) {
	text := &stubTextGenerator{result: &provider.TextResult{Title: "T", Content: "C"}}
	audio := &stubSynthesizer{audio: []byte("mp3")}
	f := newWorkerFixture(text, audio, time.Minute)

	in := &model.TourInput{Subject: "X", DurationMinutes: 30, Language: "en"}

	first := f.createTour(t, in)
	require.NoError(t, f.worker.ProcessTask(context.Background(), first))

	second := f.createTour(t, in)
	require.NoError(t, f.worker.ProcessTask(context.Background(), second))

	assert.Equal(t, 1, text.calls, "the second tour must be served from cache")
	assert.Equal(t, 1, audio.calls)

	tour, err := f.tours.Get(context.Background(), tourIDFromTask(t, second))
	require.NoError(t, err)
	assert.Equal(t, model.PhaseAudioReady, tour.Phase)
	assert.Equal(t, "openai", tour.TextProviderID, "provenance survives a cache hit")
}

func TestProcessTaskMalformedPayload(t *testing.T) {
	text := &stubTextGenerator{}
	audio := &stubSynthesizer{}
	f := newWorkerFixture(text, audio, time.Minute)

	task := asynq.NewTask(service.TaskTypeTourGenerate, []byte("{not json"))
	assert.Error(t, f.worker.ProcessTask(context.Background(), task))
}

func TestSanitizeFailure(t *testing.T) {
	exhausted := &provider.ExhaustedError{Capability: "text", Failures: []error{errors.New("secret vendor detail")}}
	msg := sanitizeFailure(exhausted)
	assert.Equal(t, "content generation failed: all configured providers were exhausted", msg)
	assert.NotContains(t, msg, "secret")

	assert.Equal(t, "content generation failed: cache store unavailable",
		sanitizeFailure(cache.ErrUnavailable))

	assert.Equal(t, "content generation failed", sanitizeFailure(errors.New("anything else")))
}
