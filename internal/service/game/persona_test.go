package game

import (
	"math/rand"
	"testing"

	model "github.com/hakoke/impostor/internal/model/game"
)

func TestUsageWeightDecays(t *testing.T) {
	a := NewAllocator(rand.New(rand.NewSource(1)))

	weights := make([]float64, 0, 3)
	for _, uses := range []int{0, 5, 10} {
		for i := 0; i < uses; i++ {
			a.MarkUsed("s1", "identity")
		}
		weights = append(weights, a.UsageWeight("s1", "identity"))
		a.Clear("s1")
	}

	if weights[0] != 1.0 {
		t.Fatalf("fresh identity weight = %v, want 1.0", weights[0])
	}
	if !(weights[0] > weights[1] && weights[1] > weights[2]) {
		t.Fatalf("weights not strictly decreasing: %v", weights)
	}
}

func TestAssignAvoidsCollisionsUntilExhausted(t *testing.T) {
	a := NewAllocator(rand.New(rand.NewSource(1)))

	seen := make(map[string]bool)
	for i := 0; i < len(aliasPool); i++ {
		alias, badge, color := a.Assign("s1", "p")
		if seen[alias] {
			t.Fatalf("alias %q handed out twice before pool exhaustion", alias)
		}
		seen[alias] = true
		if badge != string([]rune(alias)[0]) {
			t.Fatalf("badge %q is not the alias initial of %q", badge, alias)
		}
		if color == "" {
			t.Fatal("empty color")
		}
	}

	// Pool exhausted; the next assign must still succeed.
	alias, _, _ := a.Assign("s1", "p-overflow")
	if alias == "" {
		t.Fatal("assign failed after pool exhaustion")
	}
}

func TestPickWeightedPrefersFresherPersonas(t *testing.T) {
	a := NewAllocator(rand.New(rand.NewSource(42)))

	personas := map[string]model.PersonaBinding{
		"fresh": {ParticipantID: "fresh"},
		"worn":  {ParticipantID: "worn"},
	}
	for i := 0; i < 20; i++ {
		a.MarkUsed("s1", "worn")
	}

	counts := map[string]int{}
	for i := 0; i < 200; i++ {
		binding, ok := a.PickWeighted("s1", personas)
		if !ok {
			t.Fatal("pick failed")
		}
		counts[binding.ParticipantID]++
	}
	if counts["fresh"] <= counts["worn"] {
		t.Fatalf("fresh picked %d times vs worn %d, want fresh favored", counts["fresh"], counts["worn"])
	}
}

func TestPickWeightedEmpty(t *testing.T) {
	a := NewAllocator(rand.New(rand.NewSource(1)))
	if _, ok := a.PickWeighted("s1", nil); ok {
		t.Fatal("pick from empty persona set succeeded")
	}
}
