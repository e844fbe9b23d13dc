package bridge

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/nerrad567/calibright/internal/device"
)

// command is a decoded set payload. Exactly one field is non-nil.
type command struct {
	Brightness *float64 `json:"brightness"`
	Delta      *float64 `json:"delta"`
}

func parseCommand(payload []byte) (command, error) {
	s := bytes.TrimSpace(payload)
	if len(s) == 0 {
		return command{}, fmt.Errorf("%w: empty", ErrInvalidPayload)
	}

	if v, err := strconv.ParseFloat(string(s), 64); err == nil {
		if !finite(v) {
			return command{}, fmt.Errorf("%w: %s", ErrInvalidPayload, s)
		}
		return command{Brightness: &v}, nil
	}

	var c command
	dec := json.NewDecoder(bytes.NewReader(s))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&c); err != nil {
		return command{}, fmt.Errorf("%w: %w", ErrInvalidPayload, err)
	}
	if (c.Brightness == nil) == (c.Delta == nil) {
		return command{}, fmt.Errorf("%w: need exactly one of brightness or delta", ErrInvalidPayload)
	}
	return c, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// state is the retained payload on a display's state topic.
type state struct {
	Display    device.ID `json:"display"`
	Brightness float64   `json:"brightness"`
	Timestamp  time.Time `json:"timestamp"`
}
