package game

import (
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/hakoke/impostor/internal/config"
	model "github.com/hakoke/impostor/internal/model/game"
	"github.com/hakoke/impostor/internal/storage"
	"github.com/hakoke/impostor/internal/storage/memory"
)

type recordingHub struct {
	mu     sync.Mutex
	events []map[string]any
}

func (h *recordingHub) Broadcast(_ string, payload any) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if event, ok := payload.(map[string]any); ok {
		h.events = append(h.events, event)
	}
}

func (h *recordingHub) Unicast(_, _ string, payload any) {
	h.Broadcast("", payload)
}

func (h *recordingHub) lastOfType(eventType string) (map[string]any, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for i := len(h.events) - 1; i >= 0; i-- {
		if h.events[i]["type"] == eventType {
			return h.events[i], true
		}
	}
	return nil, false
}

func testConfig() config.GameConfig {
	return config.GameConfig{
		LearningSeconds:     60,
		GroupPlaySeconds:    60,
		PrivateRoundSeconds: 60,
		MindGameSeconds:     30,
		MindGameCount:       2,
		ReactSeconds:        30,
		VotingSeconds:       30,
		KnowledgeThreshold:  0.6,
	}
}

func newTestOrchestrator(t *testing.T) (*Orchestrator, *memory.Store, *recordingHub) {
	t.Helper()
	store := memory.New()
	hub := &recordingHub{}
	o := NewOrchestrator(store, hub, nil, nil, testConfig(), rand.New(rand.NewSource(7)))
	return o, store, hub
}

func waitForStatus(t *testing.T, o *Orchestrator, sessionID string, want model.Status) model.Session {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		sess, err := o.store.GetSession(context.Background(), sessionID)
		if err != nil {
			t.Fatalf("get session: %v", err)
		}
		if sess.Status == want {
			return sess
		}
		time.Sleep(10 * time.Millisecond)
	}
	sess, _ := o.store.GetSession(context.Background(), sessionID)
	t.Fatalf("session never reached %s, stuck at %s", want, sess.Status)
	return model.Session{}
}

func TestJoinAssignsUniqueAliases(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, err := o.CreateSession(ctx, model.ModeGroup)
	if err != nil {
		t.Fatalf("create session: %v", err)
	}

	seen := make(map[string]bool)
	for _, name := range []string{"ana", "ben", "cleo"} {
		p, err := o.Join(ctx, sess.ID, name)
		if err != nil {
			t.Fatalf("join %s: %v", name, err)
		}
		if p.Alias == "" || p.AliasBadge == "" || p.AliasColor == "" {
			t.Fatalf("join %s: incomplete alias identity %+v", name, p)
		}
		if seen[p.Alias] {
			t.Fatalf("alias %q assigned twice", p.Alias)
		}
		seen[p.Alias] = true
	}
}

func TestJoinRejectedAfterStart(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, _ := o.CreateSession(ctx, model.ModeGroup)
	if _, err := o.Join(ctx, sess.ID, "ana"); err != nil {
		t.Fatalf("join: %v", err)
	}
	if err := o.Start(ctx, sess.ID); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := o.Join(ctx, sess.ID, "late"); !errors.Is(err, ErrNotInLobby) {
		t.Fatalf("late join error = %v, want ErrNotInLobby", err)
	}
}

func TestAdvanceIgnoresStaleFrom(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, _ := o.CreateSession(ctx, model.ModeGroup)
	o.Join(ctx, sess.ID, "ana")
	o.Start(ctx, sess.ID)

	// The session is in learning; advancing "from playing" must change nothing.
	o.Advance(ctx, sess.ID, model.StatusPlaying)

	got, err := o.store.GetSession(ctx, sess.ID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.Status != model.StatusLearning {
		t.Fatalf("status = %s, want learning", got.Status)
	}
}

func TestLearningAdvancesThroughResearchToPlaying(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, _ := o.CreateSession(ctx, model.ModeGroup)
	p1, _ := o.Join(ctx, sess.ID, "ana")
	p2, _ := o.Join(ctx, sess.ID, "ben")
	p3, _ := o.Join(ctx, sess.ID, "cleo")
	o.Start(ctx, sess.ID)

	o.Advance(ctx, sess.ID, model.StatusLearning)

	// Research is progress-driven; with the disabled researcher it completes
	// quickly and moves the session into playing on its own.
	got := waitForStatus(t, o, sess.ID, model.StatusPlaying)

	if got.Settings.TargetID == "" {
		t.Fatal("no target selected for group play")
	}
	if len(got.Settings.Personas) != 3 {
		t.Fatalf("persona bindings = %d, want 3", len(got.Settings.Personas))
	}
	for _, id := range []string{p1.ID, p2.ID, p3.ID} {
		binding, ok := got.Settings.Personas[id]
		if !ok {
			t.Fatalf("no persona binding for %s", id)
		}
		if binding.Alias == "" {
			t.Fatalf("empty alias in binding for %s", id)
		}
	}

	// Every participant got a profile during research.
	for _, id := range []string{p1.ID, p2.ID, p3.ID} {
		if _, err := o.store.GetProfile(ctx, sess.ID, id); err != nil {
			t.Fatalf("no profile for %s: %v", id, err)
		}
	}
}

func TestHandleExchangeRejectsClosedStage(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, _ := o.CreateSession(ctx, model.ModeGroup)
	p, _ := o.Join(ctx, sess.ID, "ana")

	_, err := o.HandleExchange(ctx, InboundExchange{SessionID: sess.ID, SenderID: p.ID, Content: "hi"})
	if !errors.Is(err, ErrStageClosed) {
		t.Fatalf("lobby exchange error = %v, want ErrStageClosed", err)
	}
}

func TestLateMessageRejectedAndStageForced(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, _ := o.CreateSession(ctx, model.ModeGroup)
	p, _ := o.Join(ctx, sess.ID, "ana")

	sess.Status = model.StatusPlaying
	sess.CurrentRound = 1
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		t.Fatalf("update session: %v", err)
	}
	o.deadlines.Set(sess.ID, model.StatusPlaying, time.Now().Add(-time.Second))

	_, err := o.HandleExchange(ctx, InboundExchange{SessionID: sess.ID, SenderID: p.ID, Content: "too late"})
	if !errors.Is(err, ErrDeadlineExpired) {
		t.Fatalf("late exchange error = %v, want ErrDeadlineExpired", err)
	}

	// The rejection also forces the transition the timer missed.
	waitForStatus(t, o, sess.ID, model.StatusMindGames)

	exchanges, _ := o.store.ListExchanges(ctx, sess.ID, storage.ExchangeFilter{})
	if len(exchanges) != 0 {
		t.Fatalf("rejected message was persisted: %d exchanges", len(exchanges))
	}
}

func TestHandleExchangeSnapshotsAlias(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, _ := o.CreateSession(ctx, model.ModeGroup)
	p, _ := o.Join(ctx, sess.ID, "ana")

	sess.Status = model.StatusPlaying
	sess.CurrentRound = 1
	o.store.UpdateSession(ctx, sess)
	o.deadlines.Set(sess.ID, model.StatusPlaying, time.Now().Add(time.Minute))

	got, err := o.HandleExchange(ctx, InboundExchange{SessionID: sess.ID, SenderID: p.ID, Content: "hello"})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if got.Alias != p.Alias || got.AliasBadge != p.AliasBadge || got.AliasColor != p.AliasColor {
		t.Fatalf("alias snapshot %q/%q/%q does not match participant %q/%q/%q",
			got.Alias, got.AliasBadge, got.AliasColor, p.Alias, p.AliasBadge, p.AliasColor)
	}
	if got.Phase != model.StatusPlaying || got.RoundNumber != 1 {
		t.Fatalf("exchange tagged %s round %d, want playing round 1", got.Phase, got.RoundNumber)
	}
}

func TestTypingGapFeedsLatencyModel(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, _ := o.CreateSession(ctx, model.ModeGroup)
	p, _ := o.Join(ctx, sess.ID, "ana")

	sess.Status = model.StatusPlaying
	sess.CurrentRound = 1
	o.store.UpdateSession(ctx, sess)
	o.deadlines.Set(sess.ID, model.StatusPlaying, time.Now().Add(time.Minute))

	o.NoteTyping(sess.ID, p.ID, true)
	time.Sleep(20 * time.Millisecond)

	got, err := o.HandleExchange(ctx, InboundExchange{SessionID: sess.ID, SenderID: p.ID, Content: "typed this"})
	if err != nil {
		t.Fatalf("exchange: %v", err)
	}
	if got.LatencyMS <= 0 {
		t.Fatalf("observed latency = %d, want > 0", got.LatencyMS)
	}
}

func TestPrivateModeSkipsGroupStages(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, _ := o.CreateSession(ctx, model.ModePrivate)
	o.Join(ctx, sess.ID, "ana")
	o.Join(ctx, sess.ID, "ben")

	sess, _ = o.store.GetSession(ctx, sess.ID)
	sess.Status = model.StatusPlaying
	sess.CurrentRound = 1
	sess.TotalRounds = 2
	o.store.UpdateSession(ctx, sess)

	o.Advance(ctx, sess.ID, model.StatusPlaying)

	got, _ := o.store.GetSession(ctx, sess.ID)
	if got.Status != model.StatusVoting {
		t.Fatalf("private mode advanced to %s, want voting", got.Status)
	}
}

func TestGroupVotingAndResult(t *testing.T) {
	o, _, hub := newTestOrchestrator(t)
	ctx := context.Background()

	sess, _ := o.CreateSession(ctx, model.ModeGroup)
	p1, _ := o.Join(ctx, sess.ID, "ana")
	p2, _ := o.Join(ctx, sess.ID, "ben")

	sess, _ = o.store.GetSession(ctx, sess.ID)
	sess.Status = model.StatusVoting
	sess.Settings.TargetID = p1.ID
	o.store.UpdateSession(ctx, sess)
	o.deadlines.Set(sess.ID, model.StatusVoting, time.Now().Add(time.Minute))

	if err := o.SubmitVote(ctx, sess.ID, p1.ID, 1, p1.ID, ""); err != nil {
		t.Fatalf("vote 1: %v", err)
	}
	// Resubmission replaces, never duplicates.
	if err := o.SubmitVote(ctx, sess.ID, p1.ID, 1, p2.ID, ""); err != nil {
		t.Fatalf("vote 1 resubmit: %v", err)
	}
	votes, _ := o.store.ListVotes(ctx, sess.ID)
	if len(votes) != 1 {
		t.Fatalf("votes after resubmit = %d, want 1", len(votes))
	}
	if votes[0].VotedAIID != p2.ID {
		t.Fatalf("resubmit did not replace: voted %s", votes[0].VotedAIID)
	}

	// Final correct vote back on the target, then the second voter completes
	// the tally and finishes the session early.
	if err := o.SubmitVote(ctx, sess.ID, p1.ID, 1, p1.ID, ""); err != nil {
		t.Fatalf("vote 1 final: %v", err)
	}
	if err := o.SubmitVote(ctx, sess.ID, p2.ID, 1, p2.ID, ""); err != nil {
		t.Fatalf("vote 2: %v", err)
	}

	waitForStatus(t, o, sess.ID, model.StatusFinished)

	event, ok := hub.lastOfType("game_result")
	if !ok {
		t.Fatal("no game_result broadcast")
	}
	if got := event["fooled_rate"].(float64); got != 0.5 {
		t.Fatalf("fooled_rate = %v, want 0.5", got)
	}
	if got := event["votes_cast"].(int); got != 2 {
		t.Fatalf("votes_cast = %v, want 2", got)
	}

	scores := event["scores"].(map[string]int)
	if scores[p1.ID] != correctVoteScore {
		t.Fatalf("correct voter score = %d, want %d", scores[p1.ID], correctVoteScore)
	}
	if scores[p2.ID] != 0 {
		t.Fatalf("fooled voter score = %d, want 0", scores[p2.ID])
	}
}

func TestPrivateVoteCorrectness(t *testing.T) {
	o, store, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, _ := o.CreateSession(ctx, model.ModePrivate)
	p1, _ := o.Join(ctx, sess.ID, "ana")
	p2, _ := o.Join(ctx, sess.ID, "ben")

	store.CreatePairing(ctx, model.Pairing{
		SessionID:       sess.ID,
		RoundNumber:     1,
		Participant1ID:  p1.ID,
		Participant2ID:  model.AISender,
		ImpersonatingID: p2.ID,
	})

	sess, _ = o.store.GetSession(ctx, sess.ID)
	sess.Status = model.StatusVoting
	sess.TotalRounds = 1
	o.store.UpdateSession(ctx, sess)
	o.deadlines.Set(sess.ID, model.StatusVoting, time.Now().Add(time.Minute))

	if err := o.SubmitVote(ctx, sess.ID, p1.ID, 1, "", model.AISender); err != nil {
		t.Fatalf("vote: %v", err)
	}

	votes, _ := o.store.ListVotes(ctx, sess.ID)
	if len(votes) != 1 {
		t.Fatalf("votes = %d, want 1", len(votes))
	}
	v := votes[0]
	if v.ActualPartnerID != model.AISender {
		t.Fatalf("actual partner = %q, want ai", v.ActualPartnerID)
	}
	if v.Correct == nil || !*v.Correct {
		t.Fatal("correct ai guess not marked correct")
	}
}

func TestZeroVotesResult(t *testing.T) {
	o, _, hub := newTestOrchestrator(t)
	ctx := context.Background()

	sess, _ := o.CreateSession(ctx, model.ModeGroup)
	o.Join(ctx, sess.ID, "ana")
	o.Start(ctx, sess.ID)

	if err := o.ForceFinish(ctx, sess.ID); err != nil {
		t.Fatalf("force finish: %v", err)
	}

	event, ok := hub.lastOfType("game_result")
	if !ok {
		t.Fatal("no game_result broadcast")
	}
	if got := event["fooled_rate"].(float64); got != 0 {
		t.Fatalf("fooled_rate with zero votes = %v, want 0", got)
	}
	if got := event["votes_cast"].(int); got != 0 {
		t.Fatalf("votes_cast = %v, want 0", got)
	}

	// Finishing twice is a no-op.
	if err := o.ForceFinish(ctx, sess.ID); err != nil {
		t.Fatalf("second force finish: %v", err)
	}
}

func TestFooledRateOverAllVotesCast(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)

	sess := model.Session{ID: "s1", Mode: model.ModePrivate}
	correct := true
	votes := []model.Vote{
		{SessionID: "s1", VoterID: "p1", RoundNumber: 1, Correct: &correct},
		// A guess that never resolved against a pairing still failed to
		// identify the impostor and stays in the denominator.
		{SessionID: "s1", VoterID: "p2", RoundNumber: 2},
	}
	participants := []model.Participant{{ID: "p1"}, {ID: "p2"}}

	result := o.computeResult(sess, votes, participants)
	if result.VotesCast != 2 {
		t.Fatalf("votes cast = %d, want 2", result.VotesCast)
	}
	if result.FooledRate != 0.5 {
		t.Fatalf("fooled rate = %v, want 0.5", result.FooledRate)
	}
	if result.PlayerScores["p1"] != correctVoteScore {
		t.Fatalf("correct voter score = %d, want %d", result.PlayerScores["p1"], correctVoteScore)
	}
	if result.PlayerScores["p2"] != 0 {
		t.Fatalf("unresolved voter score = %d, want 0", result.PlayerScores["p2"])
	}
}

func TestPrivateExpectedVotesCountsPlayableSeats(t *testing.T) {
	sess := model.Session{Mode: model.ModePrivate}

	// Odd count: one pair per round with one AI seat, so only one human
	// guess per round is playable. The naive players-times-rounds figure
	// would be nine and the early finish could never fire.
	odd := buildPrivateRounds("s1", []string{"p1", "p2", "p3"}, 60, rand.New(rand.NewSource(3)))
	sess.TotalRounds = 3
	if got := expectedVotes(sess, 3, odd); got != 3 {
		t.Fatalf("odd-count expected votes = %d, want 3", got)
	}

	// Even count: every round seats all players but the AI displaces one.
	even := buildPrivateRounds("s1", []string{"p1", "p2", "p3", "p4"}, 60, rand.New(rand.NewSource(3)))
	sess.TotalRounds = 4
	if got := expectedVotes(sess, 4, even); got != 12 {
		t.Fatalf("even-count expected votes = %d, want 12", got)
	}
}

func TestVoteRejectedAfterDeadline(t *testing.T) {
	o, _, _ := newTestOrchestrator(t)
	ctx := context.Background()

	sess, _ := o.CreateSession(ctx, model.ModeGroup)
	p, _ := o.Join(ctx, sess.ID, "ana")

	sess, _ = o.store.GetSession(ctx, sess.ID)
	sess.Status = model.StatusVoting
	o.store.UpdateSession(ctx, sess)
	o.deadlines.Set(sess.ID, model.StatusVoting, time.Now().Add(-time.Second))

	if err := o.SubmitVote(ctx, sess.ID, p.ID, 1, p.ID, ""); !errors.Is(err, ErrDeadlineExpired) {
		t.Fatalf("late vote error = %v, want ErrDeadlineExpired", err)
	}
	waitForStatus(t, o, sess.ID, model.StatusFinished)
}
