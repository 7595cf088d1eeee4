package game

import (
	"context"
	"log"
	"time"

	model "github.com/hakoke/impostor/internal/model/game"
	"github.com/hakoke/impostor/internal/service/ai"
)

const correctVoteScore = 10

// SubmitVote records one participant's guess for one round. Resubmitting
// within the voting window overwrites the earlier guess.
func (o *Orchestrator) SubmitVote(ctx context.Context, sessionID, voterID string, roundNumber int, votedAIID, guessedPartnerID string) error {
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status == model.StatusFinished {
		return ErrSessionOver
	}
	if sess.Status != model.StatusVoting {
		return ErrStageClosed
	}
	if o.deadlines.Expired(sessionID, model.StatusVoting, time.Now().UTC()) {
		go o.Advance(context.Background(), sessionID, model.StatusVoting)
		return ErrDeadlineExpired
	}

	if _, err := o.store.GetParticipant(ctx, voterID); err != nil {
		return err
	}

	var pairings []model.Pairing
	if sess.Mode == model.ModePrivate {
		if pairings, err = o.store.ListPairings(ctx, sessionID); err != nil {
			return err
		}
	}

	vote := model.Vote{
		SessionID:   sessionID,
		VoterID:     voterID,
		RoundNumber: roundNumber,
		SubmittedAt: time.Now().UTC(),
	}

	switch sess.Mode {
	case model.ModeGroup:
		vote.RoundNumber = 1
		vote.VotedAIID = votedAIID

	case model.ModePrivate:
		vote.GuessedPartnerID = guessedPartnerID
		if pairing, ok := pairingFor(pairings, roundNumber, voterID); ok {
			actual := pairing.PartnerOf(voterID)
			vote.ActualPartnerID = actual
			correct := false
			if actual == model.AISender {
				correct = guessedPartnerID == model.AISender
			} else {
				correct = guessedPartnerID == actual
			}
			vote.Correct = &correct
		}
	}

	if err := o.store.UpsertVote(ctx, vote); err != nil {
		return err
	}

	votes, err := o.store.ListVotes(ctx, sessionID)
	if err != nil {
		return nil
	}
	participants, err := o.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil
	}

	expected := expectedVotes(sess, len(participants), pairings)
	o.hub.Broadcast(sessionID, map[string]any{
		"type":       "vote_submitted",
		"votes_cast": len(votes),
		"expected":   expected,
	})

	if len(votes) >= expected {
		go o.Advance(context.Background(), sessionID, model.StatusVoting)
	}
	return nil
}

// expectedVotes is the vote count that ends the voting stage early. Private
// mode collects one guess per seat a human actually played; sit-out rounds
// and the AI's own seat never produce one.
func expectedVotes(sess model.Session, playerCount int, pairings []model.Pairing) int {
	if sess.Mode != model.ModePrivate {
		return playerCount
	}
	slots := 0
	for _, pairing := range pairings {
		if pairing.Participant1ID != model.AISender && pairing.Participant1ID != "" {
			slots++
		}
		if pairing.Participant2ID != model.AISender && pairing.Participant2ID != "" {
			slots++
		}
	}
	return slots
}

// finish computes and archives the result, announces it and releases every
// per-session resource. Caller holds the session transition lock.
func (o *Orchestrator) finish(ctx context.Context, sess model.Session) error {
	now := time.Now().UTC()
	sess.Status = model.StatusFinished
	sess.EndedAt = &now
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		return err
	}

	votes, err := o.store.ListVotes(ctx, sess.ID)
	if err != nil {
		votes = nil
	}
	participants, err := o.store.ListParticipants(ctx, sess.ID)
	if err != nil {
		participants = nil
	}

	result := o.computeResult(sess, votes, participants)
	result.Analysis = o.generateAnalysis(ctx, participants)
	result.CreatedAt = now
	if err := o.store.SaveResult(ctx, result); err != nil {
		log.Printf("[game] failed to archive result for %s: %v", sess.ID, err)
	}

	for _, p := range participants {
		if delta, ok := result.PlayerScores[p.ID]; ok && delta != 0 {
			p.Score += delta
			if err := o.store.UpdateParticipant(ctx, p); err != nil {
				log.Printf("[game] failed to persist score for %s: %v", p.ID, err)
			}
		}
	}

	o.hub.Broadcast(sess.ID, map[string]any{
		"type":        "game_result",
		"fooled_rate": result.FooledRate,
		"votes_cast":  result.VotesCast,
		"scores":      result.PlayerScores,
		"analysis":    result.Analysis,
	})
	log.Printf("[game] session %s finished, fooled rate %.2f over %d votes", sess.ID, result.FooledRate, result.VotesCast)

	o.clearSessionState(sess.ID)

	go o.reflect(sess.ID, result.FooledRate)
	return nil
}

// computeResult derives the fooled rate and per-player scores. A session with
// zero votes reports a fooled rate of 0 and exposes the vote count so the
// two cases stay distinguishable.
func (o *Orchestrator) computeResult(sess model.Session, votes []model.Vote, participants []model.Participant) model.Result {
	result := model.Result{
		SessionID:    sess.ID,
		VotesCast:    len(votes),
		PlayerScores: make(map[string]int, len(participants)),
	}
	for _, p := range participants {
		result.PlayerScores[p.ID] = 0
	}

	// The fooled rate is over every vote cast: a guess that could not be
	// resolved against a pairing still failed to identify the impostor.
	fooled := 0
	for _, v := range votes {
		var correct bool
		switch sess.Mode {
		case model.ModeGroup:
			correct = v.VotedAIID == sess.Settings.TargetID && sess.Settings.TargetID != ""
		case model.ModePrivate:
			correct = v.Correct != nil && *v.Correct
		}
		if correct {
			result.PlayerScores[v.VoterID] += correctVoteScore
		} else {
			fooled++
		}
	}

	if len(votes) > 0 {
		result.FooledRate = float64(fooled) / float64(len(votes))
	}
	return result
}

// generateAnalysis asks the collaborator for the end-of-game breakdown; a
// failed generation degrades to an empty analysis, never an error.
func (o *Orchestrator) generateAnalysis(ctx context.Context, participants []model.Participant) string {
	if o.generator == nil || len(participants) == 0 {
		return ""
	}
	raw, err := o.generator.Generate(ctx, ai.BuildAnalysisMessages(participants), 0.8, 1000)
	if err != nil {
		log.Printf("[ai] post-game analysis failed: %v", err)
		return ""
	}
	return raw
}

// reflect runs the post-game self reflection and promotes the insight to the
// universal knowledge base when it clears the confidence threshold.
func (o *Orchestrator) reflect(sessionID string, fooledRate float64) {
	if o.generator == nil {
		return
	}
	ctx := context.Background()

	raw, err := o.generator.Generate(ctx, ai.BuildReflectionMessages(fooledRate), 0.5, 600)
	if err != nil {
		log.Printf("[ai] reflection failed for %s: %v", sessionID, err)
		return
	}
	reflection, err := ai.ParseReflection(raw)
	if err != nil {
		log.Printf("[ai] reflection unparsable for %s, discarding", sessionID)
		return
	}
	if !reflection.AddToUniversal || reflection.Confidence < o.cfg.KnowledgeThreshold || reflection.Pattern == "" {
		return
	}

	entry := model.KnowledgeEntry{
		Category:    reflection.Category,
		Pattern:     reflection.Pattern,
		Description: reflection.Insight,
		Confidence:  reflection.Confidence,
		UpdatedAt:   time.Now().UTC(),
	}
	if err := o.store.AppendKnowledge(ctx, entry); err != nil {
		log.Printf("[game] failed to store knowledge entry: %v", err)
		return
	}
	log.Printf("[game] learned pattern in category %s (confidence %.2f)", entry.Category, entry.Confidence)
}
