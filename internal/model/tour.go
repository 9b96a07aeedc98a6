package model

import "time"

// TourPhase tracks how far generation has progressed. Phases only move
// forward: queued -> text_ready -> audio_ready, with failed reachable
// from queued alone. A tour that produced text never regresses to failed.
type TourPhase string

const (
	PhaseQueued     TourPhase = "queued"
	PhaseTextReady  TourPhase = "text_ready"
	PhaseAudioReady TourPhase = "audio_ready"
	PhaseFailed     TourPhase = "failed"
)

// TourInput is the immutable request that fully determines the content
// cache key. Set once at creation.
type TourInput struct {
	Subject         string   `json:"subject" validate:"required,min=1,max=200"`
	City            string   `json:"city,omitempty" validate:"omitempty,max=100"`
	Interests       []string `json:"interests" validate:"max=10,dive,min=1,max=50"`
	DurationMinutes int      `json:"durationMinutes" validate:"omitempty,min=10,max=180"`
	Language        string   `json:"language,omitempty" validate:"omitempty,len=2,lowercase"`
	Voice           string   `json:"voice,omitempty" validate:"omitempty,max=50"`
}

// Tour is the externally visible unit of work, stored as JSON in Redis.
type Tour struct {
	ID                    string    `json:"id"`
	Input                 TourInput `json:"input"`
	Phase                 TourPhase `json:"phase"`
	Title                 string    `json:"title,omitempty"`
	ScriptText            string    `json:"scriptText,omitempty"`
	AudioReference        string    `json:"audioReference,omitempty"`
	DurationMinutesActual int       `json:"durationMinutesActual,omitempty"`
	TextProviderID        string    `json:"textProviderId,omitempty"`
	TextModelID           string    `json:"textModelId,omitempty"`
	AudioProviderID       string    `json:"audioProviderId,omitempty"`
	ErrorDetail           string    `json:"errorDetail,omitempty"`
	CreatedAt             time.Time `json:"createdAt"`
	UpdatedAt             time.Time `json:"updatedAt"`
}

// HasAudio reports whether the audio payload can be streamed.
func (t *Tour) HasAudio() bool {
	return t.Phase == PhaseAudioReady && t.AudioReference != ""
}

// TourCreateRequest is the body for POST /api/tours.
type TourCreateRequest struct {
	TourInput
}

type TourCreateResponse struct {
	TourID    string    `json:"tourId"`
	Phase     TourPhase `json:"phase"`
	CreatedAt time.Time `json:"createdAt"`
}

// TourStatusResponse is a point-in-time snapshot, not a subscription.
type TourStatusResponse struct {
	TourID      string    `json:"tourId"`
	Phase       TourPhase `json:"phase"`
	Title       string    `json:"title,omitempty"`
	Progress    int       `json:"progress"`
	HasAudio    bool      `json:"hasAudio"`
	ErrorDetail string    `json:"errorDetail,omitempty"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// CostEstimateRequest mirrors the tour creation input; estimating is
// side-effect free and never reaches a provider.
type CostEstimateRequest struct {
	TourInput
}

type CostComponent struct {
	EstimatedCost float64 `json:"estimatedCost"`
	Provider      string  `json:"provider,omitempty"`
	InputTokens   int     `json:"inputTokens,omitempty"`
	OutputTokens  int     `json:"outputTokens,omitempty"`
	Characters    int     `json:"characters,omitempty"`
}

type CostEstimateResponse struct {
	ContentGeneration  CostComponent `json:"contentGeneration"`
	AudioGeneration    CostComponent `json:"audioGeneration"`
	TotalEstimatedCost float64       `json:"totalEstimatedCost"`
	Cached             bool          `json:"cached"`
}
