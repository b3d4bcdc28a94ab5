package humastar

import (
	"encoding/json"

	"github.com/danielgtaylor/huma/v2"
)

// Signals is the flat signal object Datastar posts with every action.
type Signals map[string]any

func ParseSignals(body []byte) (Signals, error) {
	var s Signals
	if err := json.Unmarshal(body, &s); err != nil {
		return nil, err
	}
	return s, nil
}

// Lookup returns the signal key when it is present with type T. JSON numbers
// arrive as float64.
func Lookup[T any](s Signals, key string) (T, bool) {
	v, ok := s[key].(T)
	return v, ok
}

func (s Signals) String(key string) string {
	v, _ := Lookup[string](s, key)
	return v
}

func (s Signals) Float(key string) float64 {
	v, _ := Lookup[float64](s, key)
	return v
}

// Int truncates a numeric signal.
func (s Signals) Int(key string) int {
	return int(s.Float(key))
}

func (s Signals) Bool(key string) bool {
	v, _ := Lookup[bool](s, key)
	return v
}

// Has reports whether key was sent, whatever its value.
func (s Signals) Has(key string) bool {
	_, ok := s[key]
	return ok
}

// EmptyInput is the input of actions that take no parameters.
type EmptyInput struct{}

// SignalsInput captures the raw signal body of a Datastar action.
type SignalsInput struct {
	RawBody []byte
}

// MustParse decodes the body, turning a malformed one into a 400.
func (i *SignalsInput) MustParse() (Signals, error) {
	s, err := ParseSignals(i.RawBody)
	if err != nil {
		return nil, huma.Error400BadRequest("invalid signals: " + err.Error())
	}
	return s, nil
}
