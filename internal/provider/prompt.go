package provider

import (
	"encoding/json"
	"fmt"
	"strings"
)

// maxPromptInterests bounds prompt size: only the first three interest
// tags make it into the request payload, keeping token cost predictable.
const maxPromptInterests = 3

const tourSystemPrompt = "You are an expert travel guide. Create engaging audio tour content. " +
	"Return only valid JSON with 'title' and 'content' fields."

// BuildTourPrompt renders the token-optimized user prompt for a narration
// script. Exported so cost estimation can price the same payload without
// calling a provider.
func BuildTourPrompt(req *TextRequest) string {
	interests := "history,culture"
	if trimmed := trimInterests(req.Interests); len(trimmed) > 0 {
		interests = strings.Join(trimmed, ",")
	}

	place := req.Subject
	if req.City != "" {
		place = fmt.Sprintf("%s, %s", req.Subject, req.City)
	}

	return fmt.Sprintf(`Create %dmin audio tour for %s.
Focus: %s
Language: %s

Return JSON:
{"title": "engaging title", "content": "conversational %d-minute narration script with clear sections"}

Requirements:
- Conversational audio style
- %d minutes of content
- Include fascinating facts and stories
- Clear section transitions
- Engaging for all ages`,
		req.DurationMinutes, place, interests, req.Language,
		req.DurationMinutes, req.DurationMinutes)
}

func trimInterests(interests []string) []string {
	out := make([]string, 0, maxPromptInterests)
	for _, in := range interests {
		in = strings.TrimSpace(in)
		if in == "" {
			continue
		}
		out = append(out, in)
		if len(out) == maxPromptInterests {
			break
		}
	}
	return out
}

// parseTourResponse validates the loosely JSON-shaped model output into a
// TextResult. Any deviation from the required schema is an error; callers
// classify it as a permanent provider failure.
func parseTourResponse(raw string) (*TextResult, error) {
	var result TextResult
	if err := json.Unmarshal([]byte(extractJSON(raw)), &result); err != nil {
		return nil, fmt.Errorf("invalid JSON response: %w", err)
	}
	if strings.TrimSpace(result.Title) == "" || strings.TrimSpace(result.Content) == "" {
		return nil, fmt.Errorf("missing required fields: title, content")
	}
	return &result, nil
}

// extractJSON pulls a JSON object out of a response that may be wrapped in
// markdown fences or prose.
func extractJSON(s string) string {
	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start != -1 && end != -1 && end > start {
		return s[start : end+1]
	}
	return s
}

// truncateForSpeech trims text to the synthesis character budget, backing
// up to the last sentence boundary when one falls in the final 20% of the
// slice so narration does not cut mid-word.
func truncateForSpeech(text string, maxChars int) string {
	if maxChars <= 0 || len(text) <= maxChars {
		return text
	}
	t := text[:maxChars]
	if last := strings.LastIndex(t, "."); last > int(float64(maxChars)*0.8) {
		t = t[:last+1]
	}
	return t
}
