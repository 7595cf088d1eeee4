package game

import (
	"math/rand"
	"testing"

	model "github.com/hakoke/impostor/internal/model/game"
)

func groupByRound(pairings []model.Pairing) map[int][]model.Pairing {
	rounds := make(map[int][]model.Pairing)
	for _, p := range pairings {
		rounds[p.RoundNumber] = append(rounds[p.RoundNumber], p)
	}
	return rounds
}

func TestBuildPrivateRoundsEvenCount(t *testing.T) {
	ids := []string{"a", "b", "c", "d"}
	pairings := buildPrivateRounds("s1", ids, 120, rand.New(rand.NewSource(3)))

	rounds := groupByRound(pairings)
	if len(rounds) != len(ids) {
		t.Fatalf("rounds = %d, want %d", len(rounds), len(ids))
	}

	for round, pairs := range rounds {
		if len(pairs) != 2 {
			t.Fatalf("round %d has %d pairs, want 2", round, len(pairs))
		}

		aiSeats := 0
		seen := make(map[string]bool)
		for _, pair := range pairs {
			for _, seat := range []string{pair.Participant1ID, pair.Participant2ID} {
				if seat == model.AISender {
					aiSeats++
					if pair.ImpersonatingID == "" {
						t.Fatalf("round %d: AI seat without impersonated identity", round)
					}
					// The AI claims the displaced player's identity; the seat
					// it replaced must not also appear as a live player.
					if seen[pair.ImpersonatingID] {
						t.Fatalf("round %d: impersonated %s also seated", round, pair.ImpersonatingID)
					}
					continue
				}
				if seen[seat] {
					t.Fatalf("round %d: participant %s seated twice", round, seat)
				}
				seen[seat] = true
			}
		}
		if aiSeats != 1 {
			t.Fatalf("round %d has %d AI seats, want exactly 1", round, aiSeats)
		}
	}
}

func TestBuildPrivateRoundsOddCount(t *testing.T) {
	ids := []string{"a", "b", "c"}
	pairings := buildPrivateRounds("s1", ids, 120, rand.New(rand.NewSource(9)))

	rounds := groupByRound(pairings)
	if len(rounds) != len(ids) {
		t.Fatalf("rounds = %d, want %d", len(rounds), len(ids))
	}
	for round, pairs := range rounds {
		// Three players pair into one table; the odd player sits out.
		if len(pairs) != 1 {
			t.Fatalf("round %d has %d pairs, want 1", round, len(pairs))
		}
	}
}

func TestBuildPrivateRoundsTooFewPlayers(t *testing.T) {
	if got := buildPrivateRounds("s1", []string{"a"}, 120, rand.New(rand.NewSource(1))); len(got) != 0 {
		t.Fatalf("single player produced %d pairings, want 0", len(got))
	}
}

func TestPairingFor(t *testing.T) {
	pairings := []model.Pairing{
		{RoundNumber: 1, Participant1ID: "a", Participant2ID: "b"},
		{RoundNumber: 2, Participant1ID: "a", Participant2ID: model.AISender, ImpersonatingID: "b"},
	}

	got, ok := pairingFor(pairings, 2, "a")
	if !ok {
		t.Fatal("pairing not found")
	}
	if got.PartnerOf("a") != model.AISender {
		t.Fatalf("partner = %q, want ai seat", got.PartnerOf("a"))
	}

	if _, ok := pairingFor(pairings, 1, "zz"); ok {
		t.Fatal("found pairing for unknown participant")
	}
}
