package service

import (
	"crypto/md5"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/walkumentary/api/internal/model"
)

// Cache keys are deterministic digests over the normalized input, so the
// same request hits the same entry across jobs and callers. The provider
// is deliberately left out of the digest: whichever provider served a
// miss, the cached artifact is shared by all of them.

const keyedInterests = 3

type contentKeyFields struct {
	Subject   string   `json:"subject"`
	City      string   `json:"city"`
	Interests []string `json:"interests"`
	Duration  int      `json:"duration"`
	Language  string   `json:"language"`
}

func contentCacheKey(in *model.TourInput) string {
	fields := contentKeyFields{
		Subject:   strings.ToLower(strings.TrimSpace(in.Subject)),
		City:      strings.ToLower(strings.TrimSpace(in.City)),
		Interests: normalizeInterests(in.Interests),
		Duration:  in.DurationMinutes,
		Language:  strings.ToLower(in.Language),
	}
	return "tour:content:" + digest(fields)
}

// normalizeInterests lowercases, sorts and truncates the tag list so that
// reordered or over-long lists normalize to the same digest.
func normalizeInterests(interests []string) []string {
	out := make([]string, 0, len(interests))
	for _, in := range interests {
		in = strings.ToLower(strings.TrimSpace(in))
		if in != "" {
			out = append(out, in)
		}
	}
	sort.Strings(out)
	if len(out) > keyedInterests {
		out = out[:keyedInterests]
	}
	return out
}

type audioKeyFields struct {
	TextHash string  `json:"textHash"`
	Voice    string  `json:"voice"`
	Speed    float64 `json:"speed"`
	Model    string  `json:"model"`
}

func audioCacheKey(text, voice string, speed float64, ttsModel string) string {
	fields := audioKeyFields{
		TextHash: fmt.Sprintf("%x", md5.Sum([]byte(text))),
		Voice:    voice,
		Speed:    speed,
		Model:    ttsModel,
	}
	return "audio:tts:" + digest(fields)
}

func digest(v interface{}) string {
	data, _ := json.Marshal(v)
	return fmt.Sprintf("%x", md5.Sum(data))
}
