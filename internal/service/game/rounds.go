package game

import (
	"math/rand"
	"time"

	model "github.com/hakoke/impostor/internal/model/game"
)

// buildPrivateRounds creates one round per participant. Each round randomly
// partitions the players into pairs (an odd player out simply sits the round
// out), then exactly one seat of one randomly chosen pair is replaced by the
// AI impersonating the displaced player.
func buildPrivateRounds(sessionID string, participantIDs []string, roundSeconds int, rng *rand.Rand) []model.Pairing {
	pairings := make([]model.Pairing, 0, len(participantIDs))

	for roundNum := 1; roundNum <= len(participantIDs); roundNum++ {
		shuffled := make([]string, len(participantIDs))
		copy(shuffled, participantIDs)
		rng.Shuffle(len(shuffled), func(i, j int) {
			shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
		})

		type pair struct{ a, b string }
		pairs := make([]pair, 0, len(shuffled)/2)
		for i := 0; i+1 < len(shuffled); i += 2 {
			pairs = append(pairs, pair{shuffled[i], shuffled[i+1]})
		}
		if len(pairs) == 0 {
			continue
		}

		aiPair := rng.Intn(len(pairs))
		aiSeat := rng.Intn(2)

		for i, p := range pairs {
			pairing := model.Pairing{
				SessionID:       sessionID,
				RoundNumber:     roundNum,
				Participant1ID:  p.a,
				Participant2ID:  p.b,
				StartedAt:       time.Now().UTC(),
				DurationSeconds: roundSeconds,
			}
			if i == aiPair {
				if aiSeat == 0 {
					pairing.ImpersonatingID = p.a
					pairing.Participant1ID = model.AISender
				} else {
					pairing.ImpersonatingID = p.b
					pairing.Participant2ID = model.AISender
				}
			}
			pairings = append(pairings, pairing)
		}
	}

	return pairings
}

// pairingFor finds the current round's pairing containing the participant.
func pairingFor(pairings []model.Pairing, roundNumber int, participantID string) (model.Pairing, bool) {
	for _, p := range pairings {
		if p.RoundNumber != roundNumber {
			continue
		}
		if p.Participant1ID == participantID || p.Participant2ID == participantID {
			return p, true
		}
	}
	return model.Pairing{}, false
}
