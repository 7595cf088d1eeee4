package ai

import (
	"math/rand"
	"strings"

	model "github.com/hakoke/impostor/internal/model/game"
)

const (
	typoChance        = 0.1
	lowercaseCapLimit = 0.02
)

// ApplyTypingStyle post-processes generated text so it carries the target's
// typing quirks even when the model plays it straight.
func ApplyTypingStyle(text string, metrics model.TypingMetrics, rng *rand.Rand) string {
	if metrics.HasTypos {
		words := strings.Fields(text)
		for i, word := range words {
			if len(word) > 3 && rng.Float64() < typoChance {
				words[i] = swapAdjacent(word, rng)
			}
		}
		text = strings.Join(words, " ")
	}

	if metrics.MessageCount > 0 && metrics.CapsRatio < lowercaseCapLimit {
		text = strings.ToLower(text)
	}

	return text
}

func swapAdjacent(word string, rng *rand.Rand) string {
	runes := []rune(word)
	if len(runes) < 2 {
		return word
	}
	pos := rng.Intn(len(runes) - 1)
	runes[pos], runes[pos+1] = runes[pos+1], runes[pos]
	return string(runes)
}
