package ai

import (
	"encoding/json"
	"errors"
	"strings"
)

// ErrUnparsable is returned when collaborator output carries no usable JSON.
// Callers fall back to a weighted-random default decision; the branch is
// explicit, never a swallowed exception.
var ErrUnparsable = errors.New("collaborator output is not parsable")

// Decision is the collaborator's answer to "should the impostor join the
// conversation, and how". Respond=false is a first-class outcome.
type Decision struct {
	Respond   bool   `json:"respond"`
	PersonaID string `json:"persona_id"`
	LatencyMS int    `json:"latency_ms"`
	Message   string `json:"message"`
}

// Strategy is the collaborator's impersonation plan for one player.
type Strategy struct {
	Notes      string  `json:"notes"`
	Confidence float64 `json:"confidence"`
}

// Reflection is the collaborator's post-game self-assessment.
type Reflection struct {
	Reasoning      string  `json:"reasoning"`
	Insight        string  `json:"insight"`
	AddToUniversal bool    `json:"add_to_universal"`
	Pattern        string  `json:"pattern"`
	Category       string  `json:"category"`
	Confidence     float64 `json:"confidence"`
}

// ParseDecision extracts a participation decision from raw model output.
func ParseDecision(raw string) (Decision, error) {
	var d Decision
	if err := unmarshalEmbeddedJSON(raw, &d); err != nil {
		return Decision{}, err
	}
	return d, nil
}

// ParseStrategy extracts an impersonation strategy from raw model output.
func ParseStrategy(raw string) (Strategy, error) {
	var s Strategy
	if err := unmarshalEmbeddedJSON(raw, &s); err != nil {
		return Strategy{}, err
	}
	if s.Confidence < 0 {
		s.Confidence = 0
	}
	if s.Confidence > 1 {
		s.Confidence = 1
	}
	return s, nil
}

// ParseReflection extracts the reflection payload from raw model output.
func ParseReflection(raw string) (Reflection, error) {
	var r Reflection
	if err := unmarshalEmbeddedJSON(raw, &r); err != nil {
		return Reflection{}, err
	}
	return r, nil
}

// unmarshalEmbeddedJSON finds the outermost JSON object in free-form model
// output. Models wrap JSON in prose and code fences often enough that a bare
// json.Unmarshal is not sufficient.
func unmarshalEmbeddedJSON(raw string, v any) error {
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start < 0 || end <= start {
		return ErrUnparsable
	}
	if err := json.Unmarshal([]byte(raw[start:end+1]), v); err != nil {
		return ErrUnparsable
	}
	return nil
}
