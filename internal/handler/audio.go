package handler

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/walkumentary/api/internal/service"
	"github.com/walkumentary/api/pkg/response"
)

const audioContentType = "audio/mpeg"

// Audio handles GET /jobs/:id/audio. Unauthenticated by design: the
// payload is not sensitive and must be playable by a plain streaming
// client. Single byte ranges are honored so players can seek without
// refetching the whole payload.
func (h *TourHandler) Audio(c *fiber.Ctx) error {
	data, err := h.tours.GetAudio(c.Context(), c.Params("id"))
	if err != nil {
		switch {
		case errors.Is(err, service.ErrTourNotFound):
			return response.NotFound(c, "Tour not found")
		case errors.Is(err, service.ErrAudioNotReady):
			return response.NotReady(c, "Audio is not ready for this tour")
		default:
			return response.ServiceError(c, "Failed to load audio")
		}
	}

	c.Set(fiber.HeaderContentType, audioContentType)
	c.Set(fiber.HeaderAcceptRanges, "bytes")

	rangeHeader := c.Get(fiber.HeaderRange)
	if rangeHeader == "" {
		return c.Send(data)
	}

	start, end, err := parseByteRange(rangeHeader, len(data))
	if err != nil {
		c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes */%d", len(data)))
		return c.SendStatus(fiber.StatusRequestedRangeNotSatisfiable)
	}

	c.Set(fiber.HeaderContentRange, fmt.Sprintf("bytes %d-%d/%d", start, end, len(data)))
	return c.Status(fiber.StatusPartialContent).Send(data[start : end+1])
}

// parseByteRange resolves a Range header against a payload of the given
// size. Only the first range of a multi-range request is served.
func parseByteRange(header string, size int) (start, end int, err error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range unit: %s", header)
	}
	if i := strings.Index(spec, ","); i >= 0 {
		spec = spec[:i]
	}

	first, last, ok := strings.Cut(strings.TrimSpace(spec), "-")
	if !ok {
		return 0, 0, fmt.Errorf("malformed range: %s", header)
	}

	switch {
	case first == "" && last == "":
		return 0, 0, fmt.Errorf("empty range: %s", header)
	case first == "":
		// Suffix range: last N bytes.
		n, convErr := strconv.Atoi(last)
		if convErr != nil || n <= 0 {
			return 0, 0, fmt.Errorf("malformed suffix range: %s", header)
		}
		if n > size {
			n = size
		}
		return size - n, size - 1, nil
	default:
		start, err = strconv.Atoi(first)
		if err != nil || start < 0 || start >= size {
			return 0, 0, fmt.Errorf("range start out of bounds: %s", header)
		}
		if last == "" {
			return start, size - 1, nil
		}
		end, err = strconv.Atoi(last)
		if err != nil || end < start {
			return 0, 0, fmt.Errorf("malformed range: %s", header)
		}
		if end >= size {
			end = size - 1
		}
		return start, end, nil
	}
}
