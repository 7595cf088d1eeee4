package game

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	model "github.com/hakoke/impostor/internal/model/game"
)

func setupMindGame(t *testing.T, o *Orchestrator, started time.Time, durationSeconds int) (model.Session, model.Participant, model.MindGame) {
	t.Helper()
	ctx := context.Background()

	sess, _ := o.CreateSession(ctx, model.ModeGroup)
	p, err := o.Join(ctx, sess.ID, "ana")
	if err != nil {
		t.Fatalf("join: %v", err)
	}

	sess, _ = o.store.GetSession(ctx, sess.ID)
	sess.Status = model.StatusMindGames
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("update session: %v", err)
	}

	game := model.MindGame{
		ID:              uuid.NewString(),
		SessionID:       sess.ID,
		Sequence:        1,
		Prompt:          "one sentence about your morning",
		DurationSeconds: durationSeconds,
		StartedAt:       started,
	}
	if err := o.store.CreateMindGame(ctx, game); err != nil {
		t.Fatalf("create mind game: %v", err)
	}
	return sess, p, game
}

func TestMindGameResponseUpsert(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, p, game := setupMindGame(t, o, time.Now().UTC(), 60)

	if err := o.SubmitMindGameResponse(ctx, sess.ID, game.ID, p.ID, "first"); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if err := o.SubmitMindGameResponse(ctx, sess.ID, game.ID, p.ID, "second"); err != nil {
		t.Fatalf("resubmit: %v", err)
	}

	responses, _ := o.store.ListMindGameResponses(ctx, game.ID)
	if len(responses) != 1 {
		t.Fatalf("responses = %d, want 1", len(responses))
	}
	if responses[0].Answer != "second" {
		t.Fatalf("answer = %q, want replacement", responses[0].Answer)
	}
	if responses[0].Alias != p.Alias {
		t.Fatalf("alias snapshot = %q, want %q", responses[0].Alias, p.Alias)
	}
}

func TestMindGameLateResponseRejected(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, p, game := setupMindGame(t, o, time.Now().UTC().Add(-2*time.Minute), 30)

	err := o.SubmitMindGameResponse(ctx, sess.ID, game.ID, p.ID, "too late")
	if !errors.Is(err, ErrDeadlineExpired) {
		t.Fatalf("late submit error = %v, want ErrDeadlineExpired", err)
	}
}

func TestMindGameRejectedOutsideStage(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, p, game := setupMindGame(t, o, time.Now().UTC(), 60)

	updated, _ := o.store.GetSession(ctx, sess.ID)
	updated.Status = model.StatusReact
	o.store.UpdateSession(ctx, updated)

	err := o.SubmitMindGameResponse(ctx, sess.ID, game.ID, p.ID, "answer")
	if !errors.Is(err, ErrStageClosed) {
		t.Fatalf("out-of-stage submit error = %v, want ErrStageClosed", err)
	}
}

func TestRevealFiresExactlyOnce(t *testing.T) {
	o, _, hub := newTestOrchestrator(t)
	ctx := context.Background()

	sess, p, game := setupMindGame(t, o, time.Now().UTC(), 60)
	if err := o.SubmitMindGameResponse(ctx, sess.ID, game.ID, p.ID, "answer"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	for i := 0; i < 5; i++ {
		o.revealMindGame(ctx, sess.ID, game.ID)
	}

	hub.mu.Lock()
	reveals := 0
	for _, event := range hub.events {
		if event["type"] == "mind_game_reveal" {
			reveals++
		}
	}
	hub.mu.Unlock()

	if reveals != 1 {
		t.Fatalf("reveals = %d, want exactly 1", reveals)
	}
}

func TestRevealGuardSurvivesOtherSessionClear(t *testing.T) {
	o, _, hub := newTestOrchestrator(t)
	ctx := context.Background()

	sess, p, game := setupMindGame(t, o, time.Now().UTC(), 60)
	if err := o.SubmitMindGameResponse(ctx, sess.ID, game.ID, p.ID, "answer"); err != nil {
		t.Fatalf("submit: %v", err)
	}

	o.revealMindGame(ctx, sess.ID, game.ID)

	// Tearing down an unrelated session must not reset this session's
	// reveal guard.
	o.clearSessionState("some-other-session")
	o.revealMindGame(ctx, sess.ID, game.ID)

	hub.mu.Lock()
	reveals := 0
	for _, event := range hub.events {
		if event["type"] == "mind_game_reveal" {
			reveals++
		}
	}
	hub.mu.Unlock()

	if reveals != 1 {
		t.Fatalf("reveals = %d, want exactly 1", reveals)
	}
}

func TestMindGameWarmupIndependentOfLatencyModel(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	// Flood the latency model with floor-level samples; a model-driven delay
	// for this identity would clamp well under the warm-up band.
	for i := 0; i < latencySampleCap; i++ {
		o.latency.Record("s1", "p1", 1)
	}

	for i := 0; i < 200; i++ {
		got := o.mindGameWarmupMS()
		if got < mindGameWarmupMinMS || got > mindGameWarmupMaxMS {
			t.Fatalf("warmup = %d, want within [%d, %d]", got, mindGameWarmupMinMS, mindGameWarmupMaxMS)
		}
	}
}

func TestMindGameStageBudgetCoversRevealGaps(t *testing.T) {
	o, _, hub := newTestOrchestrator(t)
	ctx := context.Background()

	sess, _ := o.CreateSession(ctx, model.ModeGroup)
	o.Join(ctx, sess.ID, "ana")

	sess, _ = o.store.GetSession(ctx, sess.ID)
	o.beginMindGames(ctx, sess)

	event, ok := hub.lastOfType("group_stage")
	if !ok {
		t.Fatal("no group_stage broadcast")
	}
	cfg := testConfig()
	want := cfg.MindGameCount*cfg.MindGameSeconds + (cfg.MindGameCount-1)*mindGameGapSeconds
	if got := event["duration"].(int); got != want {
		t.Fatalf("stage budget = %d, want %d including reveal gaps", got, want)
	}
}

func TestRevealAdvancesAfterLastRound(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, _, game := setupMindGame(t, o, time.Now().UTC(), 60)

	o.revealMindGame(ctx, sess.ID, game.ID)

	got, _ := o.store.GetSession(ctx, sess.ID)
	if got.Status != model.StatusReact {
		t.Fatalf("status after final reveal = %s, want react", got.Status)
	}
}
