package pokedex

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Threshold is the probability a result must exceed to be announced.
const Threshold = 0.9

// ErrMalformedResponse is returned when model output is not a valid Result.
var ErrMalformedResponse = errors.New("pokedex: malformed response")

// Result is the model's answer for one frame. Number 0 means nothing was
// recognized.
type Result struct {
	Name        string  `json:"name"`
	Number      int     `json:"number"`
	Probability float64 `json:"probability"`
}

// Recognized reports whether the result names a Pokémon with probability
// strictly above threshold.
func (r Result) Recognized(threshold float64) bool {
	return r.Number != 0 && r.Probability > threshold
}

// ParseResult decodes model output into a Result.
//
// Surrounding code fences are removed first. What remains must be exactly one
// JSON object carrying name (string), number (non-negative integer) and
// probability (number in [0,1]). Anything else, including prose around the
// object, is rejected.
func ParseResult(text string) (Result, error) {
	body := stripFences(text)
	if body == "" {
		return Result{}, fmt.Errorf("%w: empty text", ErrMalformedResponse)
	}

	dec := json.NewDecoder(strings.NewReader(body))
	var fields map[string]json.RawMessage
	if err := dec.Decode(&fields); err != nil {
		return Result{}, fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	if fields == nil {
		return Result{}, fmt.Errorf("%w: not an object", ErrMalformedResponse)
	}
	if _, err := dec.Token(); err != io.EOF {
		return Result{}, fmt.Errorf("%w: trailing data after object", ErrMalformedResponse)
	}

	var r Result
	if err := decodeField(fields, "name", &r.Name); err != nil {
		return Result{}, err
	}
	if err := decodeField(fields, "number", &r.Number); err != nil {
		return Result{}, err
	}
	if err := decodeField(fields, "probability", &r.Probability); err != nil {
		return Result{}, err
	}

	if r.Number < 0 {
		return Result{}, fmt.Errorf("%w: negative number %d", ErrMalformedResponse, r.Number)
	}
	if r.Probability < 0 || r.Probability > 1 {
		return Result{}, fmt.Errorf("%w: probability %v out of range", ErrMalformedResponse, r.Probability)
	}
	return r, nil
}

func decodeField(fields map[string]json.RawMessage, key string, dst interface{}) error {
	raw, ok := fields[key]
	if !ok {
		return fmt.Errorf("%w: missing %q", ErrMalformedResponse, key)
	}
	if string(raw) == "null" {
		return fmt.Errorf("%w: %q is null", ErrMalformedResponse, key)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrMalformedResponse, key, err)
	}
	return nil
}

// stripFences removes a Markdown code fence (``` or ```json) around text.
func stripFences(text string) string {
	s := strings.TrimSpace(text)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if len(s) >= 4 && strings.EqualFold(s[:4], "json") {
		s = s[4:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
