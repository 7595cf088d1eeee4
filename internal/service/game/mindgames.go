package game

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	model "github.com/hakoke/impostor/internal/model/game"
	"github.com/hakoke/impostor/internal/service/ai"
)

const (
	// Gap between a reveal and the next round's prompt.
	mindGameGapSeconds = 3

	// The impostor's warm-up before answering a prompt. Drawn independently
	// of the typing-latency model: reading a prompt is not typing a chat
	// message.
	mindGameWarmupMinMS = 2000
	mindGameWarmupMaxMS = 8000
)

// mindGamePrompt is one scripted entry of the round catalog.
type mindGamePrompt struct {
	prompt       string
	instructions string
	revealTitle  string
}

var mindGameCatalog = []mindGamePrompt{
	{
		prompt:       "Describe your morning routine in exactly one sentence.",
		instructions: "Everyone answers at once. Answers drop simultaneously when time runs out.",
		revealTitle:  "routines, revealed",
	},
	{
		prompt:       "What's the most overrated thing everyone here probably likes?",
		instructions: "One hot take each. Keep it in your own voice.",
		revealTitle:  "hot takes",
	},
	{
		prompt:       "You have to delete every app on your phone except three. Which survive?",
		instructions: "Just the three, plus one word why.",
		revealTitle:  "the survivors",
	},
	{
		prompt:       "Finish the sentence: nobody in this chat knows that I...",
		instructions: "Plausible beats shocking. The impostor is answering too.",
		revealTitle:  "confessions",
	},
	{
		prompt:       "What would you order for the whole table if money didn't matter?",
		instructions: "One order, any cuisine.",
		revealTitle:  "the big order",
	},
	{
		prompt:       "Describe your week so far using only emoji.",
		instructions: "Emoji only. Count and choice both say something about you.",
		revealTitle:  "weeks in emoji",
	},
}

// mindGameState tracks which rounds have already revealed, so racing timers
// and early-completion triggers cannot reveal the same round twice. The guard
// is keyed per session so clearing one finished session never resets another
// session's reveals.
type mindGameState struct {
	mu       sync.Mutex
	revealed map[string]map[string]bool // session id -> mind game id -> revealed
}

func newMindGameState() *mindGameState {
	return &mindGameState{revealed: make(map[string]map[string]bool)}
}

// markRevealed reports true exactly once per mind game id.
func (s *mindGameState) markRevealed(sessionID, mindGameID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	rounds, ok := s.revealed[sessionID]
	if !ok {
		rounds = make(map[string]bool)
		s.revealed[sessionID] = rounds
	}
	if rounds[mindGameID] {
		return false
	}
	rounds[mindGameID] = true
	return true
}

func (s *mindGameState) Clear(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.revealed, sessionID)
}

// beginMindGames provisions the scripted rounds and starts the first one.
// Caller holds the session transition lock.
func (o *Orchestrator) beginMindGames(ctx context.Context, sess model.Session) {
	count := o.cfg.MindGameCount
	if count > len(mindGameCatalog) {
		count = len(mindGameCatalog)
	}

	// Pick a random window of the catalog so repeat games differ.
	offset := 0
	if spare := len(mindGameCatalog) - count; spare > 0 {
		offset = o.intn(spare + 1)
	}

	for i := 0; i < count; i++ {
		entry := mindGameCatalog[offset+i]
		game := model.MindGame{
			ID:              uuid.NewString(),
			SessionID:       sess.ID,
			Sequence:        i + 1,
			Prompt:          entry.prompt,
			Instructions:    entry.instructions,
			RevealTitle:     entry.revealTitle,
			DurationSeconds: o.cfg.MindGameSeconds,
		}
		if err := o.store.CreateMindGame(ctx, game); err != nil {
			log.Printf("[game] failed to provision mind game for %s: %v", sess.ID, err)
		}
	}

	// The stage budget covers every round plus the gaps between reveals, so
	// the stage timer never truncates the final round.
	budget := count * o.cfg.MindGameSeconds
	if count > 1 {
		budget += (count - 1) * mindGameGapSeconds
	}
	o.enterTimedStage(ctx, sess, model.StatusMindGames, budget)
	o.startMindGameRound(sess.ID, 1)
}

// startMindGameRound broadcasts one round's prompt, schedules its reveal and
// queues the impostor's own answer.
func (o *Orchestrator) startMindGameRound(sessionID string, sequence int) {
	ctx := context.Background()
	games, err := o.store.ListMindGames(ctx, sessionID)
	if err != nil || sequence > len(games) {
		return
	}
	game := games[sequence-1]
	game.StartedAt = time.Now().UTC()
	if err := o.store.UpdateMindGame(ctx, game); err != nil {
		log.Printf("[game] failed to mark mind game %s started: %v", game.ID, err)
	}

	o.hub.Broadcast(sessionID, map[string]any{
		"type":         "mind_game",
		"mind_game_id": game.ID,
		"sequence":     game.Sequence,
		"total":        len(games),
		"prompt":       game.Prompt,
		"instructions": game.Instructions,
		"duration":     game.DurationSeconds,
	})

	go o.submitAIMindGameAnswer(sessionID, game)

	mindGameID := game.ID
	o.timers.Schedule(sessionID, time.Duration(game.DurationSeconds)*time.Second, func() {
		o.revealMindGame(context.Background(), sessionID, mindGameID)
	})
}

// SubmitMindGameResponse records one identity's answer. Resubmitting within
// the window replaces the previous answer; answers after the reveal are
// rejected.
func (o *Orchestrator) SubmitMindGameResponse(ctx context.Context, sessionID, mindGameID, participantID, answer string) error {
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != model.StatusMindGames {
		return ErrStageClosed
	}

	game, err := o.store.GetMindGame(ctx, mindGameID)
	if err != nil {
		return err
	}
	if !game.StartedAt.IsZero() {
		deadline := game.StartedAt.Add(time.Duration(game.DurationSeconds) * time.Second)
		if time.Now().UTC().After(deadline) {
			go o.revealMindGame(context.Background(), sessionID, mindGameID)
			return ErrDeadlineExpired
		}
	}

	participant, err := o.store.GetParticipant(ctx, participantID)
	if err != nil {
		return err
	}

	response := model.MindGameResponse{
		MindGameID:    mindGameID,
		ParticipantID: participantID,
		Alias:         participant.Alias,
		AliasBadge:    participant.AliasBadge,
		AliasColor:    participant.AliasColor,
		Answer:        answer,
		SubmittedAt:   time.Now().UTC(),
	}
	if err := o.store.UpsertMindGameResponse(ctx, response); err != nil {
		return err
	}

	o.hub.Broadcast(sessionID, map[string]any{
		"type":         "mind_game_submitted",
		"mind_game_id": mindGameID,
		"alias":        participant.Alias,
	})

	o.maybeRevealEarly(ctx, sessionID, mindGameID)
	return nil
}

// maybeRevealEarly reveals the round as soon as every identity has answered.
func (o *Orchestrator) maybeRevealEarly(ctx context.Context, sessionID, mindGameID string) {
	participants, err := o.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return
	}
	responses, err := o.store.ListMindGameResponses(ctx, mindGameID)
	if err != nil {
		return
	}
	// One answer per player plus the impostor's.
	if len(responses) >= len(participants)+1 {
		o.revealMindGame(ctx, sessionID, mindGameID)
	}
}

// mindGameWarmupMS draws the impostor's prompt-reading delay. Deliberately
// not fed by the typing-latency samples.
func (o *Orchestrator) mindGameWarmupMS() int {
	return mindGameWarmupMinMS + o.intn(mindGameWarmupMaxMS-mindGameWarmupMinMS+1)
}

// submitAIMindGameAnswer has the impostor answer the prompt in a chosen
// persona's voice, after its own think-and-type delay.
func (o *Orchestrator) submitAIMindGameAnswer(sessionID string, game model.MindGame) {
	ctx := context.Background()
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return
	}

	binding, ok := o.allocator.PickWeighted(sessionID, sess.Settings.Personas)
	if !ok {
		return
	}

	answer := fallbackText
	if o.generator != nil {
		impersonated, perr := o.store.GetParticipant(ctx, binding.ParticipantID)
		if perr == nil {
			profile, gerr := o.store.GetProfile(ctx, sessionID, binding.ParticipantID)
			if gerr != nil {
				profile = model.PersonalityProfile{}
			}
			knowledge, _ := o.store.ListKnowledge(ctx, 5)
			system := ai.BuildImpersonationSystem(impersonated.Username, profile, knowledge)
			raw, gerr := o.generator.Generate(ctx, ai.BuildMindGameMessages(system, impersonated.Username, game.Prompt, game.Instructions), 0.9, 200)
			if gerr != nil {
				log.Printf("[ai] mind game answer failed: %v", gerr)
			} else if raw != "" {
				answer = raw
			}
			if profile.TypingPatterns.MessageCount > 0 {
				answer = ai.ApplyTypingStyle(answer, profile.TypingPatterns, o.lockedRng())
			}
		}
	}

	latencyMS := o.mindGameWarmupMS()
	o.timers.Schedule(sessionID, time.Duration(latencyMS)*time.Millisecond, func() {
		bg := context.Background()
		current, err := o.store.GetSession(bg, sessionID)
		if err != nil || current.Status != model.StatusMindGames {
			return
		}
		response := model.MindGameResponse{
			MindGameID:    game.ID,
			ParticipantID: model.AISender,
			Alias:         binding.Alias,
			AliasBadge:    binding.Badge,
			AliasColor:    binding.Color,
			Answer:        answer,
			IsAI:          true,
			LatencyMS:     latencyMS,
			SubmittedAt:   time.Now().UTC(),
		}
		if err := o.store.UpsertMindGameResponse(bg, response); err != nil {
			log.Printf("[game] failed to store impostor mind game answer: %v", err)
			return
		}
		o.hub.Broadcast(sessionID, map[string]any{
			"type":         "mind_game_submitted",
			"mind_game_id": game.ID,
			"alias":        binding.Alias,
		})
		o.allocator.MarkUsed(sessionID, binding.ParticipantID)
		o.maybeRevealEarly(bg, sessionID, game.ID)
	})
}

// revealMindGame publishes all answers at once, then either starts the next
// round or advances the stage. Reveals exactly once no matter how many
// triggers race.
func (o *Orchestrator) revealMindGame(ctx context.Context, sessionID, mindGameID string) {
	if !o.rounds.markRevealed(sessionID, mindGameID) {
		return
	}

	game, err := o.store.GetMindGame(ctx, mindGameID)
	if err != nil {
		return
	}
	responses, err := o.store.ListMindGameResponses(ctx, mindGameID)
	if err != nil {
		log.Printf("[game] failed to load mind game responses for %s: %v", mindGameID, err)
		responses = nil
	}

	answers := make([]map[string]any, 0, len(responses))
	for _, r := range responses {
		answers = append(answers, map[string]any{
			"alias":       r.Alias,
			"alias_badge": r.AliasBadge,
			"alias_color": r.AliasColor,
			"answer":      r.Answer,
		})
	}

	o.hub.Broadcast(sessionID, map[string]any{
		"type":         "mind_game_reveal",
		"mind_game_id": mindGameID,
		"title":        game.RevealTitle,
		"prompt":       game.Prompt,
		"answers":      answers,
	})

	games, err := o.store.ListMindGames(ctx, sessionID)
	if err != nil {
		return
	}
	if game.Sequence < len(games) {
		sequence := game.Sequence + 1
		o.timers.Schedule(sessionID, mindGameGapSeconds*time.Second, func() {
			o.startMindGameRound(sessionID, sequence)
		})
		return
	}
	o.Advance(ctx, sessionID, model.StatusMindGames)
}
