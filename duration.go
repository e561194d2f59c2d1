package tempgroup

import (
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

var durationPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

var unitSeconds = map[string]int64{
	"s": 1,
	"m": 60,
	"h": 3600,
	"d": 86400,
}

// ParseDuration converts a human duration string ("10m", "2d") into a
// time.Duration with one second granularity. The grammar is \d+[smhd],
// case-insensitive. Anything else, including values that overflow, returns
// ErrInvalidDuration.
func ParseDuration(raw string) (time.Duration, error) {
	match := durationPattern.FindStringSubmatch(strings.ToLower(raw))
	if match == nil {
		return 0, ErrInvalidDuration.WithMetadata(map[string]any{
			"input": raw,
		})
	}

	value, err := strconv.ParseInt(match[1], 10, 64)
	if err != nil {
		return 0, goerrors.Wrap(err, goerrors.CategoryValidation, "duration value out of range").
			WithTextCode(textCodeInvalidDuration).
			WithCode(goerrors.CodeBadRequest).
			WithMetadata(map[string]any{
				"input": raw,
			})
	}

	unit := unitSeconds[match[2]]
	if value > math.MaxInt64/int64(time.Second)/unit {
		return 0, ErrInvalidDuration.WithMetadata(map[string]any{
			"input":  raw,
			"reason": "overflow",
		})
	}

	return time.Duration(value*unit) * time.Second, nil
}
