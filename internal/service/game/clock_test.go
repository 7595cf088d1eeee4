package game

import (
	"testing"
	"time"

	model "github.com/hakoke/impostor/internal/model/game"
)

func TestDeadlineExpiry(t *testing.T) {
	d := NewDeadlineStore()
	now := time.Now()

	d.Set("s1", model.StatusPlaying, now.Add(time.Minute))
	if d.Expired("s1", model.StatusPlaying, now) {
		t.Fatal("future deadline reported expired")
	}
	if !d.Expired("s1", model.StatusPlaying, now.Add(2*time.Minute)) {
		t.Fatal("past deadline not reported expired")
	}
}

func TestDeadlineUnknownNeverExpires(t *testing.T) {
	d := NewDeadlineStore()
	if d.Expired("s1", model.StatusResearching, time.Now()) {
		t.Fatal("stage with no recorded deadline reported expired")
	}
}

func TestDeadlineClear(t *testing.T) {
	d := NewDeadlineStore()
	d.Set("s1", model.StatusVoting, time.Now().Add(-time.Hour))
	d.Clear("s1")
	if d.Expired("s1", model.StatusVoting, time.Now()) {
		t.Fatal("cleared deadline still expires")
	}
	if _, ok := d.Get("s1", model.StatusVoting); ok {
		t.Fatal("cleared deadline still readable")
	}
}
