package typing

import "testing"

func TestAnalyzeEmptyInput(t *testing.T) {
	metrics := Analyze(nil)
	if metrics.MessageCount != 0 {
		t.Fatalf("expected zero metrics, got %+v", metrics)
	}
}

func TestAnalyzeLowercaseTyper(t *testing.T) {
	metrics := Analyze([]string{
		"yo wassup",
		"idk man just chillin rn",
		"lol yeah that movie was wild",
	})

	if !metrics.AllLowercase {
		t.Fatal("expected all-lowercase detection")
	}
	if !metrics.HasTypos {
		t.Fatal("expected typo markers to trip detection")
	}
	if metrics.ResponseStyle != "short" {
		t.Fatalf("expected short response style, got %s", metrics.ResponseStyle)
	}
	if metrics.CapsRatio != 0 {
		t.Fatalf("expected zero caps ratio, got %f", metrics.CapsRatio)
	}
}

func TestAnalyzeFormalTyper(t *testing.T) {
	long := "I have been considering the proposal carefully and I believe the architecture deserves another review before we commit to anything."
	metrics := Analyze([]string{long, long})

	if metrics.AllLowercase {
		t.Fatal("expected capitalized text to clear the lowercase flag")
	}
	if metrics.ResponseStyle != "long" {
		t.Fatalf("expected long response style, got %s", metrics.ResponseStyle)
	}
	if metrics.PeriodsPerMsg != 1 {
		t.Fatalf("expected one period per message, got %f", metrics.PeriodsPerMsg)
	}
}

func TestAnalyzeEmojiHistogram(t *testing.T) {
	metrics := Analyze([]string{"nice 😂😂", "ok 😂 sure 🔥"})

	if metrics.EmojiPerMsg != 2 {
		t.Fatalf("expected two emojis per message, got %f", metrics.EmojiPerMsg)
	}
	if len(metrics.TopEmojis) == 0 || metrics.TopEmojis[0] != "😂" {
		t.Fatalf("expected 😂 as top emoji, got %v", metrics.TopEmojis)
	}
}
