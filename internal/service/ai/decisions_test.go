package ai

import (
	"errors"
	"testing"
)

func TestParseDecisionPlainJSON(t *testing.T) {
	raw := `{"respond": true, "persona_id": "p-1", "latency_ms": 2100, "message": "lol same"}`

	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !d.Respond || d.PersonaID != "p-1" || d.LatencyMS != 2100 || d.Message != "lol same" {
		t.Fatalf("unexpected decision %+v", d)
	}
}

func TestParseDecisionFencedJSON(t *testing.T) {
	raw := "Sure, here's my call:\n```json\n{\"respond\": false}\n```\nhope that helps"

	d, err := ParseDecision(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.Respond {
		t.Fatal("respond = true, want false")
	}
}

func TestParseDecisionUnparsable(t *testing.T) {
	for _, raw := range []string{"", "no json here", "{broken", "]["} {
		if _, err := ParseDecision(raw); !errors.Is(err, ErrUnparsable) {
			t.Fatalf("ParseDecision(%q) error = %v, want ErrUnparsable", raw, err)
		}
	}
}

func TestParseStrategyClampsConfidence(t *testing.T) {
	s, err := ParseStrategy(`{"notes": "short king", "confidence": 3.5}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Confidence != 1 {
		t.Fatalf("confidence = %v, want clamped to 1", s.Confidence)
	}

	s, err = ParseStrategy(`{"notes": "n", "confidence": -0.2}`)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if s.Confidence != 0 {
		t.Fatalf("confidence = %v, want clamped to 0", s.Confidence)
	}
}

func TestParseReflection(t *testing.T) {
	raw := `{"reasoning": "r", "insight": "i", "add_to_universal": true, "pattern": "reply slower", "category": "typing_patterns", "confidence": 0.8}`

	r, err := ParseReflection(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if !r.AddToUniversal || r.Pattern != "reply slower" || r.Category != "typing_patterns" || r.Confidence != 0.8 {
		t.Fatalf("unexpected reflection %+v", r)
	}
}
