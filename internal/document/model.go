package document

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"time"
)

// Animation duration defaults, in milliseconds as stored on the wire.
const (
	DefaultDurationMs = 1000
	MinDurationMs     = 1000
)

var ErrInvalidScene = errors.New("invalid scene data")

// SceneData is the persisted and exchanged shape of a scene:
// {"elements": [...], "duration": <milliseconds>}.
type SceneData struct {
	Elements []Element `json:"elements"`
	Duration float64   `json:"duration"`
}

// AnimationDuration returns Duration as a time.Duration, falling back to the default
// for zero or negative values.
func (d SceneData) AnimationDuration() time.Duration {
	return DurationFromMs(d.Duration)
}

// maxDurationMs is the longest duration, in milliseconds, a time.Duration holds.
const maxDurationMs = float64(math.MaxInt64 / int64(time.Millisecond))

// DurationFromMs converts a millisecond count to a time.Duration. Values that
// are not positive (NaN included) give the default; values past the range of
// time.Duration saturate at the largest whole millisecond count.
func DurationFromMs(ms float64) time.Duration {
	if !(ms > 0) {
		return DefaultDurationMs * time.Millisecond
	}
	if ms >= maxDurationMs {
		return time.Duration(maxDurationMs) * time.Millisecond
	}
	return time.Duration(ms * float64(time.Millisecond))
}

// NewEmptyScene returns a scene with no elements and the default duration.
func NewEmptyScene() *SceneData {
	return &SceneData{
		Elements: []Element{},
		Duration: DefaultDurationMs,
	}
}

// Decode parses and validates scene JSON. It rejects anything that is not an
// object with an "elements" array and a numeric "duration", as well as element
// entries with wrong-typed fields, missing ids or duplicate ids.
func Decode(data []byte) (*SceneData, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil || fields == nil {
		return nil, fmt.Errorf("%w: not a JSON object", ErrInvalidScene)
	}

	rawElements, ok := fields["elements"]
	if !ok || !isJSONArray(rawElements) {
		return nil, fmt.Errorf("%w: elements must be an array", ErrInvalidScene)
	}

	var duration any
	rawDuration, ok := fields["duration"]
	if !ok || json.Unmarshal(rawDuration, &duration) != nil {
		return nil, fmt.Errorf("%w: duration must be a number", ErrInvalidScene)
	}
	durationMs, ok := duration.(float64)
	if !ok {
		return nil, fmt.Errorf("%w: duration must be a number", ErrInvalidScene)
	}

	var elements []Element
	if err := json.Unmarshal(rawElements, &elements); err != nil {
		return nil, fmt.Errorf("%w: elements: %v", ErrInvalidScene, err)
	}

	seen := make(map[string]struct{}, len(elements))
	for i, el := range elements {
		if el.ID == "" {
			return nil, fmt.Errorf("%w: element %d has no id", ErrInvalidScene, i)
		}
		if _, dup := seen[el.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate element id %q", ErrInvalidScene, el.ID)
		}
		seen[el.ID] = struct{}{}
	}

	if elements == nil {
		elements = []Element{}
	}
	return &SceneData{Elements: elements, Duration: durationMs}, nil
}

// Encode serializes scene data, always emitting an elements array.
func Encode(d *SceneData) ([]byte, error) {
	out := SceneData{Elements: d.Elements, Duration: d.Duration}
	if out.Elements == nil {
		out.Elements = []Element{}
	}
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal scene: %w", err)
	}
	return data, nil
}

func isJSONArray(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) > 0 && trimmed[0] == '['
}
