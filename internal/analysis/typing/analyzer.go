package typing

import (
	"sort"
	"strings"
	"unicode"

	"github.com/hakoke/impostor/internal/model/game"
)

// typoMarkers are spellings that show up when someone types fast and does
// not proofread. Their presence is the signal, not the specific word.
var typoMarkers = []string{
	"teh", "hte", "dont", "cant", "wont", "didnt", "isnt", "im ", "ur", "u ",
	"wat", "thats", "gonna", "wanna", "lol", "lmao", "idk", "tbh", "rn",
}

// stopWords keeps common filler out of the common-words list.
var stopWords = map[string]struct{}{
	"this": {}, "that": {}, "with": {}, "have": {}, "what": {}, "your": {},
	"from": {}, "they": {}, "just": {}, "like": {}, "about": {}, "would": {},
	"there": {}, "their": {}, "been": {}, "were": {}, "when": {}, "will": {},
}

// Analyze derives typing-pattern metrics from a participant's raw messages.
// Pure function; feeds the personality profile built during research.
func Analyze(messages []string) game.TypingMetrics {
	if len(messages) == 0 {
		return game.TypingMetrics{}
	}

	metrics := game.TypingMetrics{
		MessageCount:   len(messages),
		AllLowercase:   true,
		EmojiHistogram: make(map[string]int),
	}

	var totalChars, upperChars int
	var periods, exclaims, questions, emojiTotal int
	wordCounts := make(map[string]int)

	for _, msg := range messages {
		totalChars += len(msg)
		periods += strings.Count(msg, ".")
		exclaims += strings.Count(msg, "!")
		questions += strings.Count(msg, "?")
		metrics.EllipsisCount += strings.Count(msg, "...")

		for _, r := range msg {
			if unicode.IsUpper(r) {
				upperChars++
				metrics.AllLowercase = false
			}
			if isEmoji(r) {
				emojiTotal++
				metrics.EmojiHistogram[string(r)]++
			}
		}

		for _, word := range strings.Fields(strings.ToLower(msg)) {
			word = strings.Trim(word, ".,!?\"'")
			if len(word) <= 3 {
				continue
			}
			if _, skip := stopWords[word]; skip {
				continue
			}
			wordCounts[word]++
		}

		lower := strings.ToLower(msg)
		for _, marker := range typoMarkers {
			if strings.Contains(lower, marker) {
				metrics.HasTypos = true
				break
			}
		}
	}

	n := float64(len(messages))
	metrics.AvgLength = float64(totalChars) / n
	if totalChars > 0 {
		metrics.CapsRatio = float64(upperChars) / float64(totalChars)
	}
	metrics.PeriodsPerMsg = float64(periods) / n
	metrics.ExclaimsPerMsg = float64(exclaims) / n
	metrics.QuestionsPerMsg = float64(questions) / n
	metrics.EmojiPerMsg = float64(emojiTotal) / n
	metrics.TopEmojis = topKeys(metrics.EmojiHistogram, 5)
	metrics.CommonWords = topKeys(wordCounts, 10)

	if metrics.AvgLength < 50 {
		metrics.ResponseStyle = "short"
	} else {
		metrics.ResponseStyle = "long"
	}
	if len(metrics.EmojiHistogram) == 0 {
		metrics.EmojiHistogram = nil
	}

	return metrics
}

func isEmoji(r rune) bool {
	switch {
	case r >= 0x1F300 && r <= 0x1F5FF: // symbols & pictographs
		return true
	case r >= 0x1F600 && r <= 0x1F64F: // emoticons
		return true
	case r >= 0x1F680 && r <= 0x1F6FF: // transport & map symbols
		return true
	case r >= 0x1F900 && r <= 0x1F9FF: // supplemental symbols
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols & dingbats
		return true
	default:
		return false
	}
}

func topKeys(counts map[string]int, limit int) []string {
	if len(counts) == 0 {
		return nil
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > limit {
		keys = keys[:limit]
	}
	return keys
}
