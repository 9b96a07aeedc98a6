package provider

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTourPromptDefaults(t *testing.T) {
	prompt := BuildTourPrompt(&TextRequest{
		Subject:         "Eiffel Tower",
		DurationMinutes: 30,
		Language:        "en",
	})

	assert.Contains(t, prompt, "30min audio tour for Eiffel Tower")
	assert.Contains(t, prompt, "Focus: history,culture")
	assert.Contains(t, prompt, "Language: en")
}

func TestBuildTourPromptIncludesCity(t *testing.T) {
	prompt := BuildTourPrompt(&TextRequest{
		Subject:         "Eiffel Tower",
		City:            "Paris",
		DurationMinutes: 45,
		Language:        "fr",
	})

	assert.Contains(t, prompt, "Eiffel Tower, Paris")
}

func TestBuildTourPromptTruncatesInterests(t *testing.T) {
	prompt := BuildTourPrompt(&TextRequest{
		Subject:         "Colosseum",
		Interests:       []string{"history", "architecture", "food", "art", "music"},
		DurationMinutes: 30,
		Language:        "en",
	})

	assert.Contains(t, prompt, "Focus: history,architecture,food")
	assert.NotContains(t, prompt, "art")
	assert.NotContains(t, prompt, "music")
}

func TestTrimInterestsSkipsBlanks(t *testing.T) {
	out := trimInterests([]string{"  ", "history", "", " food "})
	assert.Equal(t, []string{"history", "food"}, out)
}

func TestParseTourResponsePlainJSON(t *testing.T) {
	result, err := parseTourResponse(`{"title": "A Walk", "content": "Welcome to the tour."}`)
	require.NoError(t, err)
	assert.Equal(t, "A Walk", result.Title)
	assert.Equal(t, "Welcome to the tour.", result.Content)
}

func TestParseTourResponseFencedJSON(t *testing.T) {
	raw := "Here you go:\n```json\n{\"title\": \"A Walk\", \"content\": \"Hello.\"}\n```\nEnjoy!"
	result, err := parseTourResponse(raw)
	require.NoError(t, err)
	assert.Equal(t, "A Walk", result.Title)
}

func TestParseTourResponseMissingFields(t *testing.T) {
	_, err := parseTourResponse(`{"title": "A Walk"}`)
	assert.Error(t, err)

	_, err = parseTourResponse(`{"title": "", "content": "x"}`)
	assert.Error(t, err)
}

func TestParseTourResponseNotJSON(t *testing.T) {
	_, err := parseTourResponse("I'm sorry, I cannot help with that.")
	assert.Error(t, err)
}

func TestTruncateForSpeechShortTextUntouched(t *testing.T) {
	text := "Short narration."
	assert.Equal(t, text, truncateForSpeech(text, 4000))
}

func TestTruncateForSpeechBacksUpToSentence(t *testing.T) {
	// Sentence boundary inside the final 20% of the budget.
	text := strings.Repeat("a", 95) + ". And then some trailing words beyond the cut"
	out := truncateForSpeech(text, 100)
	assert.Equal(t, strings.Repeat("a", 95)+".", out)
}

func TestTruncateForSpeechHardCutWithoutLateBoundary(t *testing.T) {
	// Only sentence boundary is early, so the cut stays at the budget.
	text := "Intro. " + strings.Repeat("b", 200)
	out := truncateForSpeech(text, 100)
	assert.Len(t, out, 100)
}
