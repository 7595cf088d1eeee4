package game

import (
	"context"
	"errors"
	"log"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/hakoke/impostor/internal/analysis/typing"
	"github.com/hakoke/impostor/internal/config"
	model "github.com/hakoke/impostor/internal/model/game"
	"github.com/hakoke/impostor/internal/service/ai"
	"github.com/hakoke/impostor/internal/service/research"
	"github.com/hakoke/impostor/internal/storage"
)

var (
	// ErrDeadlineExpired is the structured rejection for anything submitted
	// after its stage or round deadline lapsed.
	ErrDeadlineExpired = errors.New("deadline_expired")
	ErrNotInLobby      = errors.New("session already started")
	ErrStageClosed     = errors.New("stage does not accept messages")
	ErrSessionOver     = errors.New("session already finished")
)

// fallbackText keeps gameplay moving when the generation collaborator fails;
// players see a neutral in-character shrug, never an error.
const fallbackText = "hey, what's up"

// Broadcaster is the outbound transport boundary.
type Broadcaster interface {
	Broadcast(sessionID string, payload any)
	Unicast(sessionID, participantID string, payload any)
}

// InboundExchange is one chat message arriving from a client.
type InboundExchange struct {
	SessionID   string
	SenderID    string
	RecipientID string
	Content     string
}

// Orchestrator owns session status transitions and every timed background
// task that auto-advances them. All transitions are idempotent: re-invoking
// one on an already-advanced session is a no-op.
type Orchestrator struct {
	store      storage.Store
	hub        Broadcaster
	generator  ai.Generator // nil disables AI participation
	researcher research.Researcher
	cfg        config.GameConfig

	allocator *Allocator
	latency   *LatencyModel
	deadlines *DeadlineStore
	timers    *timerRegistry
	rounds    *mindGameState

	rngMu sync.Mutex
	rng   *rand.Rand

	transitions sync.Map // session id -> *sync.Mutex

	typingMu    sync.Mutex
	typingStart map[string]map[string]time.Time
}

// NewOrchestrator wires the scheduler around its collaborators. A nil
// generator turns the session into a humans-only dry run; a nil researcher
// degrades to empty web findings.
func NewOrchestrator(store storage.Store, hub Broadcaster, generator ai.Generator, researcher research.Researcher, cfg config.GameConfig, rng *rand.Rand) *Orchestrator {
	if researcher == nil {
		researcher = research.Disabled{}
	}
	return &Orchestrator{
		store:       store,
		hub:         hub,
		generator:   generator,
		researcher:  researcher,
		cfg:         cfg,
		allocator:   NewAllocator(rand.New(rand.NewSource(rng.Int63()))),
		latency:     NewLatencyModel(rand.New(rand.NewSource(rng.Int63()))),
		deadlines:   NewDeadlineStore(),
		timers:      newTimerRegistry(),
		rounds:      newMindGameState(),
		rng:         rng,
		typingStart: make(map[string]map[string]time.Time),
	}
}

// Allocator exposes the persona allocator for transports that need alias
// lookups.
func (o *Orchestrator) Allocator() *Allocator { return o.allocator }

// CreateSession provisions a new game in the lobby state.
func (o *Orchestrator) CreateSession(ctx context.Context, mode model.Mode) (model.Session, error) {
	if mode != model.ModeGroup && mode != model.ModePrivate {
		mode = model.ModeGroup
	}
	sess := model.Session{
		ID:     uuid.NewString(),
		Mode:   mode,
		Status: model.StatusLobby,
		Settings: model.Settings{
			LearningSeconds:     o.cfg.LearningSeconds,
			PlaySeconds:         o.cfg.GroupPlaySeconds,
			PrivateRoundSeconds: o.cfg.PrivateRoundSeconds,
		},
		TotalRounds: 1,
		CreatedAt:   time.Now().UTC(),
	}
	if err := o.store.CreateSession(ctx, sess); err != nil {
		return model.Session{}, err
	}
	return sess, nil
}

// Join adds a player to a lobby and assigns their immutable alias identity.
func (o *Orchestrator) Join(ctx context.Context, sessionID, username string) (model.Participant, error) {
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return model.Participant{}, err
	}
	if sess.Status != model.StatusLobby {
		return model.Participant{}, ErrNotInLobby
	}

	participant := model.Participant{
		ID:        uuid.NewString(),
		SessionID: sessionID,
		Username:  username,
		Connected: true,
		JoinedAt:  time.Now().UTC(),
	}
	participant.Alias, participant.AliasBadge, participant.AliasColor = o.allocator.Assign(sessionID, participant.ID)

	if err := o.store.AddParticipant(ctx, participant); err != nil {
		return model.Participant{}, err
	}

	o.hub.Broadcast(sessionID, map[string]any{
		"type": "player_joined",
		"player": map[string]any{
			"id":          participant.ID,
			"username":    participant.Username,
			"alias":       participant.Alias,
			"alias_badge": participant.AliasBadge,
			"alias_color": participant.AliasColor,
		},
	})
	return participant, nil
}

// UpdateHandles stores a player's social handles for the research phase.
func (o *Orchestrator) UpdateHandles(ctx context.Context, participantID string, handles map[string]string) error {
	participant, err := o.store.GetParticipant(ctx, participantID)
	if err != nil {
		return err
	}
	participant.SocialHandles = handles
	return o.store.UpdateParticipant(ctx, participant)
}

// SetConnected flips a participant's liveness flag and announces it.
func (o *Orchestrator) SetConnected(ctx context.Context, sessionID, participantID string, connected bool) {
	participant, err := o.store.GetParticipant(ctx, participantID)
	if err != nil {
		return
	}
	participant.Connected = connected
	if err := o.store.UpdateParticipant(ctx, participant); err != nil {
		log.Printf("[game] failed to update liveness for %s: %v", participantID, err)
		return
	}
	if !connected {
		o.hub.Broadcast(sessionID, map[string]any{
			"type":      "player_disconnected",
			"player_id": participantID,
		})
	}
}

// NoteTyping records typing-indicator flips and relays them to the session.
// The gap between typing start and message arrival is the observed latency
// fed to the mimicry model.
func (o *Orchestrator) NoteTyping(sessionID, participantID string, isTyping bool) {
	o.typingMu.Lock()
	byParticipant, ok := o.typingStart[sessionID]
	if !ok {
		byParticipant = make(map[string]time.Time)
		o.typingStart[sessionID] = byParticipant
	}
	if isTyping {
		if _, started := byParticipant[participantID]; !started {
			byParticipant[participantID] = time.Now()
		}
	} else {
		delete(byParticipant, participantID)
	}
	o.typingMu.Unlock()

	o.hub.Broadcast(sessionID, map[string]any{
		"type":           "typing_indicator",
		"participant_id": participantID,
		"is_typing":      isTyping,
	})
}

func (o *Orchestrator) observedLatencyMS(sessionID, participantID string) int {
	o.typingMu.Lock()
	defer o.typingMu.Unlock()
	started, ok := o.typingStart[sessionID][participantID]
	if !ok {
		return 0
	}
	delete(o.typingStart[sessionID], participantID)
	return int(time.Since(started).Milliseconds())
}

// Start moves a lobby into the learning phase and kicks off the schedule.
func (o *Orchestrator) Start(ctx context.Context, sessionID string) error {
	mu := o.sessionMutex(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status != model.StatusLobby {
		return ErrNotInLobby
	}

	now := time.Now().UTC()
	sess.Status = model.StatusLearning
	sess.StartedAt = &now
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		return err
	}

	o.enterTimedStage(ctx, sess, model.StatusLearning, o.cfg.LearningSeconds)
	o.startLearningConversations(sessionID)
	return nil
}

// Advance moves the session out of `from` if it is still there. Safe to call
// from racing triggers; exactly one caller wins.
func (o *Orchestrator) Advance(ctx context.Context, sessionID string, from model.Status) {
	mu := o.sessionMutex(sessionID)
	mu.Lock()
	defer mu.Unlock()

	// Re-fetch after acquiring the lock: the status may have moved while a
	// timer was in flight.
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil || sess.Status != from {
		return
	}

	next := model.NextStatus(from, sess.Mode)
	o.beginStage(ctx, sess, next)
}

// beginStage performs the setup of the next stage. Caller holds the session
// transition lock.
func (o *Orchestrator) beginStage(ctx context.Context, sess model.Session, next model.Status) {
	sess.Status = next
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		log.Printf("[game] failed to persist transition of %s to %s: %v", sess.ID, next, err)
		return
	}
	log.Printf("[game] session %s entered %s", sess.ID, next)

	switch next {
	case model.StatusResearching:
		o.hub.Broadcast(sess.ID, map[string]any{
			"type":    "phase_change",
			"phase":   model.StatusResearching,
			"message": "the impostor is studying everyone...",
		})
		go o.runResearch(sess.ID)

	case model.StatusPlaying:
		o.beginPlaying(ctx, sess)

	case model.StatusMindGames:
		o.beginMindGames(ctx, sess)

	case model.StatusReact:
		o.enterTimedStage(ctx, sess, model.StatusReact, o.cfg.ReactSeconds)

	case model.StatusVoting:
		o.enterTimedStage(ctx, sess, model.StatusVoting, o.cfg.VotingSeconds)

	case model.StatusFinished:
		if err := o.finish(ctx, sess); err != nil {
			log.Printf("[game] failed to finish session %s: %v", sess.ID, err)
		}
	}
}

// enterTimedStage records the stage deadline, broadcasts it and schedules the
// automatic advance.
func (o *Orchestrator) enterTimedStage(ctx context.Context, sess model.Session, stage model.Status, seconds int) {
	deadline := time.Now().UTC().Add(time.Duration(seconds) * time.Second)
	o.deadlines.Set(sess.ID, stage, deadline)

	sess.Settings.Timeline = append(sess.Settings.Timeline, model.StageWindow{
		Stage:    stage,
		Duration: seconds,
		Deadline: deadline,
	})
	if err := o.store.UpdateSession(ctx, sess); err != nil {
		log.Printf("[game] failed to record timeline for %s: %v", sess.ID, err)
	}

	payload := map[string]any{
		"type":     "phase_change",
		"phase":    stage,
		"duration": seconds,
		"deadline": deadline.Unix(),
	}
	if stage == model.StatusMindGames || stage == model.StatusReact {
		payload["type"] = "group_stage"
		payload["stage"] = stage
		payload["aliases"] = o.aliasMap(ctx, sess.ID)
	}
	o.hub.Broadcast(sess.ID, payload)

	sessionID := sess.ID
	o.timers.Schedule(sessionID, time.Duration(seconds)*time.Second, func() {
		o.Advance(context.Background(), sessionID, stage)
	})
}

// beginPlaying selects the deception structure for the mode and opens chat.
func (o *Orchestrator) beginPlaying(ctx context.Context, sess model.Session) {
	participants, err := o.store.ListParticipants(ctx, sess.ID)
	if err != nil {
		log.Printf("[game] failed to list participants for %s: %v", sess.ID, err)
		return
	}

	sess.CurrentRound = 1

	switch sess.Mode {
	case model.ModeGroup:
		sess.TotalRounds = 1
		if len(participants) > 0 {
			target := participants[o.intn(len(participants))]
			sess.Settings.TargetID = target.ID
		}
		personas := make(map[string]model.PersonaBinding, len(participants))
		for _, p := range participants {
			personas[p.ID] = model.PersonaBinding{
				ParticipantID: p.ID,
				Alias:         p.Alias,
				Badge:         p.AliasBadge,
				Color:         p.AliasColor,
			}
		}
		sess.Settings.Personas = personas
		o.enterTimedStage(ctx, sess, model.StatusPlaying, o.cfg.GroupPlaySeconds)

	case model.ModePrivate:
		ids := make([]string, 0, len(participants))
		for _, p := range participants {
			ids = append(ids, p.ID)
		}
		pairings := buildPrivateRounds(sess.ID, ids, o.cfg.PrivateRoundSeconds, o.lockedRng())
		for _, pairing := range pairings {
			if err := o.store.CreatePairing(ctx, pairing); err != nil {
				log.Printf("[game] failed to persist pairing for %s: %v", sess.ID, err)
			}
		}
		sess.TotalRounds = len(ids)
		o.enterTimedStage(ctx, sess, model.StatusPlaying, o.cfg.PrivateRoundSeconds)
		o.schedulePrivateRoundAdvance(sess.ID)
	}
}

// schedulePrivateRoundAdvance ticks through private-mode rounds; when the
// final round's budget lapses the playing stage itself advances.
func (o *Orchestrator) schedulePrivateRoundAdvance(sessionID string) {
	o.timers.Schedule(sessionID, time.Duration(o.cfg.PrivateRoundSeconds)*time.Second, func() {
		ctx := context.Background()
		mu := o.sessionMutex(sessionID)
		mu.Lock()
		sess, err := o.store.GetSession(ctx, sessionID)
		if err != nil || sess.Status != model.StatusPlaying {
			mu.Unlock()
			return
		}
		if sess.CurrentRound >= sess.TotalRounds {
			mu.Unlock()
			o.Advance(ctx, sessionID, model.StatusPlaying)
			return
		}
		sess.CurrentRound++
		deadline := time.Now().UTC().Add(time.Duration(o.cfg.PrivateRoundSeconds) * time.Second)
		o.deadlines.Set(sessionID, model.StatusPlaying, deadline)
		if err := o.store.UpdateSession(ctx, sess); err != nil {
			log.Printf("[game] failed to advance private round for %s: %v", sessionID, err)
		}
		round := sess.CurrentRound
		mu.Unlock()

		o.hub.Broadcast(sessionID, map[string]any{
			"type":     "phase_change",
			"phase":    model.StatusPlaying,
			"round":    round,
			"duration": o.cfg.PrivateRoundSeconds,
			"deadline": deadline.Unix(),
		})
		o.schedulePrivateRoundAdvance(sessionID)
	})
}

// HandleExchange validates, persists and fans out one inbound chat message,
// then gives the impostor a chance to join the conversation.
func (o *Orchestrator) HandleExchange(ctx context.Context, in InboundExchange) (model.Exchange, error) {
	sess, err := o.store.GetSession(ctx, in.SessionID)
	if err != nil {
		return model.Exchange{}, err
	}
	if sess.Status == model.StatusFinished {
		return model.Exchange{}, ErrSessionOver
	}

	switch sess.Status {
	case model.StatusLearning, model.StatusPlaying, model.StatusMindGames, model.StatusReact:
	default:
		return model.Exchange{}, ErrStageClosed
	}

	// A message arriving after the recorded deadline means the background
	// timer lost the race; reject the message and force the transition that
	// should already have happened.
	if o.deadlines.Expired(in.SessionID, sess.Status, time.Now().UTC()) {
		go o.Advance(context.Background(), in.SessionID, sess.Status)
		return model.Exchange{}, ErrDeadlineExpired
	}

	sender, err := o.store.GetParticipant(ctx, in.SenderID)
	if err != nil {
		return model.Exchange{}, err
	}

	observed := o.observedLatencyMS(in.SessionID, in.SenderID)
	if observed > 0 {
		o.latency.Record(in.SessionID, in.SenderID, observed)
	}

	exchange := model.Exchange{
		SessionID:   in.SessionID,
		RoundNumber: sess.CurrentRound,
		Phase:       sess.Status,
		SenderID:    in.SenderID,
		RecipientID: in.RecipientID,
		Content:     in.Content,
		Alias:       sender.Alias,
		AliasBadge:  sender.AliasBadge,
		AliasColor:  sender.AliasColor,
		LatencyMS:   observed,
		Timestamp:   time.Now().UTC(),
	}
	exchange, err = o.store.AppendExchange(ctx, exchange)
	if err != nil {
		return model.Exchange{}, err
	}

	o.fanOut(ctx, sess, exchange)

	switch {
	case sess.Status == model.StatusLearning:
		go o.replyInLearning(in.SessionID, in.SenderID, in.Content)
	case sess.Mode == model.ModeGroup:
		go o.maybeImpersonate(in.SessionID, in.Content)
	case sess.Mode == model.ModePrivate && sess.Status == model.StatusPlaying:
		go o.replyInPrivateRound(in.SessionID, sess.CurrentRound, in.SenderID, in.Content)
	}

	return exchange, nil
}

// fanOut routes a stored exchange: private-mode playing messages go only to
// the sender's current partner; everything else is session-wide.
func (o *Orchestrator) fanOut(ctx context.Context, sess model.Session, exchange model.Exchange) {
	payload := exchangeEvent(exchange)

	if sess.Mode == model.ModePrivate && sess.Status == model.StatusPlaying {
		pairings, err := o.store.ListPairings(ctx, sess.ID)
		if err == nil {
			if pairing, ok := pairingFor(pairings, sess.CurrentRound, exchange.SenderID); ok {
				partner := pairing.PartnerOf(exchange.SenderID)
				o.hub.Unicast(sess.ID, exchange.SenderID, payload)
				if partner != model.AISender && partner != "" {
					o.hub.Unicast(sess.ID, partner, payload)
				}
				return
			}
		}
		// Unpaired this round; only the sender sees their own message.
		o.hub.Unicast(sess.ID, exchange.SenderID, payload)
		return
	}

	if exchange.Phase == model.StatusLearning {
		// Learning chats are one-on-one with the impostor.
		o.hub.Unicast(sess.ID, exchange.SenderID, payload)
		return
	}

	o.hub.Broadcast(sess.ID, payload)
}

func exchangeEvent(e model.Exchange) map[string]any {
	senderID := e.SenderID
	if e.IsAI && e.ImpersonatingID != "" {
		// Appears to come from the impersonated identity.
		senderID = e.ImpersonatingID
	}
	return map[string]any{
		"type":        "chat_message",
		"sender_id":   senderID,
		"alias":       e.Alias,
		"alias_badge": e.AliasBadge,
		"alias_color": e.AliasColor,
		"content":     e.Content,
		"latency_ms":  e.LatencyMS,
		"timestamp":   e.Timestamp.Unix(),
	}
}

// ForceFinish terminates a session outside the scheduled flow.
func (o *Orchestrator) ForceFinish(ctx context.Context, sessionID string) error {
	mu := o.sessionMutex(sessionID)
	mu.Lock()
	defer mu.Unlock()

	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return err
	}
	if sess.Status == model.StatusFinished {
		return nil
	}
	return o.finish(ctx, sess)
}

// sessionMutex returns the per-session transition lock.
func (o *Orchestrator) sessionMutex(sessionID string) *sync.Mutex {
	mu, _ := o.transitions.LoadOrStore(sessionID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// clearSessionState releases every in-process map entry held for a session.
func (o *Orchestrator) clearSessionState(sessionID string) {
	o.timers.CancelAll(sessionID)
	o.deadlines.Clear(sessionID)
	o.latency.Clear(sessionID)
	o.allocator.Clear(sessionID)
	o.rounds.Clear(sessionID)
	o.typingMu.Lock()
	delete(o.typingStart, sessionID)
	o.typingMu.Unlock()
}

func (o *Orchestrator) aliasMap(ctx context.Context, sessionID string) map[string]map[string]string {
	participants, err := o.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return nil
	}
	aliases := make(map[string]map[string]string, len(participants))
	for _, p := range participants {
		aliases[p.ID] = map[string]string{
			"alias": p.Alias,
			"badge": p.AliasBadge,
			"color": p.AliasColor,
		}
	}
	return aliases
}

func (o *Orchestrator) intn(n int) int {
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return o.rng.Intn(n)
}

func (o *Orchestrator) float64() float64 {
	o.rngMu.Lock()
	defer o.rngMu.Unlock()
	return o.rng.Float64()
}

// lockedRng derives a fresh source for helpers that take a *rand.Rand, so
// concurrent callers never share unsynchronized rng state.
func (o *Orchestrator) lockedRng() *rand.Rand {
	o.rngMu.Lock()
	seed := o.rng.Int63()
	o.rngMu.Unlock()
	return rand.New(rand.NewSource(seed))
}

// runResearch builds a personality profile for every participant, then
// advances into the playing stage. Research is progress-driven, not timed.
func (o *Orchestrator) runResearch(sessionID string) {
	ctx := context.Background()

	participants, err := o.store.ListParticipants(ctx, sessionID)
	if err != nil {
		log.Printf("[game] research aborted for %s: %v", sessionID, err)
		return
	}

	for _, participant := range participants {
		// Re-fetch after each awaited external call; a force-finish may have
		// landed while we were away.
		sess, err := o.store.GetSession(ctx, sessionID)
		if err != nil || sess.Status != model.StatusResearching {
			return
		}

		exchanges, err := o.store.ListExchanges(ctx, sessionID, storage.ExchangeFilter{
			Phase:  model.StatusLearning,
			WithID: participant.ID,
		})
		if err != nil {
			log.Printf("[game] failed to load learning transcript for %s: %v", participant.ID, err)
			continue
		}
		texts := make([]string, 0, len(exchanges))
		for _, e := range exchanges {
			if e.SenderID == participant.ID {
				texts = append(texts, e.Content)
			}
		}

		metrics := typing.Analyze(texts)

		findings, err := o.researcher.Research(ctx, participant.Username, participant.SocialHandles)
		if err != nil {
			log.Printf("[game] research lookup failed for %s: %v", participant.Username, err)
			findings = model.WebFindings{}
		}

		profile := model.PersonalityProfile{
			SessionID:      sessionID,
			ParticipantID:  participant.ID,
			TypingPatterns: metrics,
			WebData:        findings,
			Confidence:     0.5,
			CreatedAt:      time.Now().UTC(),
		}

		if o.generator != nil {
			raw, err := o.generator.Generate(ctx, ai.BuildStrategyMessages(participant.Username, texts, metrics, findings), 0.3, 800)
			if err != nil {
				log.Printf("[ai] strategy generation failed for %s: %v", participant.Username, err)
			} else if strategy, perr := ai.ParseStrategy(raw); perr != nil {
				log.Printf("[ai] strategy unparsable for %s, keeping defaults", participant.Username)
			} else {
				profile.ImpersonationNotes = strategy.Notes
				profile.Confidence = strategy.Confidence
			}
		}

		if err := o.store.SaveProfile(ctx, profile); err != nil {
			log.Printf("[game] failed to save profile for %s: %v", participant.ID, err)
		}
	}

	o.Advance(ctx, sessionID, model.StatusResearching)
}

// startLearningConversations has the impostor open a one-on-one thread with
// every player.
func (o *Orchestrator) startLearningConversations(sessionID string) {
	ctx := context.Background()
	participants, err := o.store.ListParticipants(ctx, sessionID)
	if err != nil {
		return
	}
	for _, participant := range participants {
		participantID := participant.ID
		go o.sendLearningMessage(ctx, sessionID, participantID, nil, "")
	}
}

// replyInLearning continues the impostor's one-on-one learning thread.
func (o *Orchestrator) replyInLearning(sessionID, participantID, incoming string) {
	ctx := context.Background()
	history, err := o.store.ListExchanges(ctx, sessionID, storage.ExchangeFilter{
		Phase:  model.StatusLearning,
		WithID: participantID,
	})
	if err != nil {
		history = nil
	}
	o.sendLearningMessage(ctx, sessionID, participantID, history, incoming)
}

func (o *Orchestrator) sendLearningMessage(ctx context.Context, sessionID, participantID string, history []model.Exchange, incoming string) {
	text := fallbackText
	if o.generator != nil {
		raw, err := o.generator.Generate(ctx, ai.BuildLearningMessages(history, incoming), 0.8, 300)
		if err != nil {
			log.Printf("[ai] learning reply failed for %s: %v", participantID, err)
		} else if raw != "" {
			text = raw
		}
	}

	delay := time.Duration(o.latency.Mimic(sessionID, participantID)) * time.Millisecond
	o.timers.Schedule(sessionID, delay, func() {
		bg := context.Background()
		sess, err := o.store.GetSession(bg, sessionID)
		if err != nil || sess.Status != model.StatusLearning {
			return
		}
		exchange := model.Exchange{
			SessionID:   sessionID,
			RoundNumber: sess.CurrentRound,
			Phase:       model.StatusLearning,
			SenderID:    model.AISender,
			RecipientID: participantID,
			Content:     text,
			IsAI:        true,
			LatencyMS:   int(delay.Milliseconds()),
			Timestamp:   time.Now().UTC(),
		}
		if exchange, err = o.store.AppendExchange(bg, exchange); err != nil {
			log.Printf("[game] failed to store learning reply: %v", err)
			return
		}
		o.hub.Unicast(sessionID, participantID, exchangeEvent(exchange))
	})
}

// maybeImpersonate runs the impostor's participation decision after a human
// message in group chat. Abstention is a first-class outcome.
func (o *Orchestrator) maybeImpersonate(sessionID, humanMessage string) {
	ctx := context.Background()
	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return
	}
	personas := sess.Settings.Personas
	if len(personas) == 0 {
		return
	}

	decision := o.decideParticipation(ctx, sessionID, humanMessage, personas)
	if !decision.Respond {
		return
	}

	binding, ok := personas[decision.PersonaID]
	if !ok {
		// Collaborator's choice was unusable; degrade to weighted random.
		binding, ok = o.allocator.PickWeighted(sessionID, personas)
		if !ok {
			return
		}
	}

	latencyMS := decision.LatencyMS
	if latencyMS < latencyFloorMS || latencyMS > latencyCeilingMS {
		latencyMS = o.latency.Mimic(sessionID, binding.ParticipantID)
	}

	text := decision.Message
	if text == "" {
		text = o.impersonatedReply(ctx, sess, binding.ParticipantID, humanMessage)
	}
	if metricsProfile, err := o.store.GetProfile(ctx, sessionID, binding.ParticipantID); err == nil {
		text = ai.ApplyTypingStyle(text, metricsProfile.TypingPatterns, o.lockedRng())
	}

	// The simulated latency is a real scheduling delay, not display metadata.
	o.timers.Schedule(sessionID, time.Duration(latencyMS)*time.Millisecond, func() {
		bg := context.Background()
		current, err := o.store.GetSession(bg, sessionID)
		if err != nil {
			return
		}
		switch current.Status {
		case model.StatusPlaying, model.StatusMindGames, model.StatusReact:
		default:
			return
		}

		exchange := model.Exchange{
			SessionID:       sessionID,
			RoundNumber:     current.CurrentRound,
			Phase:           current.Status,
			SenderID:        model.AISender,
			ImpersonatingID: binding.ParticipantID,
			Content:         text,
			IsAI:            true,
			Alias:           binding.Alias,
			AliasBadge:      binding.Badge,
			AliasColor:      binding.Color,
			LatencyMS:       latencyMS,
			Timestamp:       time.Now().UTC(),
		}
		exchange, err = o.store.AppendExchange(bg, exchange)
		if err != nil {
			log.Printf("[game] failed to store impostor message: %v", err)
			return
		}
		o.hub.Broadcast(sessionID, exchangeEvent(exchange))
		// Count usage only once the message actually went out.
		o.allocator.MarkUsed(sessionID, binding.ParticipantID)
	})
}

// decideParticipation asks the collaborator whether to speak. Every failure
// mode degrades to a weighted-random default decision instead of an error.
func (o *Orchestrator) decideParticipation(ctx context.Context, sessionID, humanMessage string, personas map[string]model.PersonaBinding) ai.Decision {
	fallback := func() ai.Decision {
		// Speak roughly every other message so silence stays plausible.
		if o.float64() < 0.5 {
			return ai.Decision{Respond: false}
		}
		binding, ok := o.allocator.PickWeighted(sessionID, personas)
		if !ok {
			return ai.Decision{Respond: false}
		}
		return ai.Decision{Respond: true, PersonaID: binding.ParticipantID}
	}

	if o.generator == nil {
		return fallback()
	}

	weights := make(map[string]float64, len(personas))
	aliases := make(map[string]string, len(personas))
	for id, binding := range personas {
		weights[id] = o.allocator.UsageWeight(sessionID, id)
		aliases[id] = binding.Alias
	}

	raw, err := o.generator.Generate(ctx, ai.BuildDecisionMessages(humanMessage, weights, aliases), 0.7, 400)
	if err != nil {
		log.Printf("[ai] participation decision failed: %v", err)
		return fallback()
	}
	decision, err := ai.ParseDecision(raw)
	if err != nil {
		log.Printf("[ai] participation decision unparsable, using weighted fallback")
		return fallback()
	}
	return decision
}

// impersonatedReply generates a full in-persona reply for the identity.
func (o *Orchestrator) impersonatedReply(ctx context.Context, sess model.Session, identityID, humanMessage string) string {
	if o.generator == nil {
		return fallbackText
	}

	participant, err := o.store.GetParticipant(ctx, identityID)
	if err != nil {
		return fallbackText
	}
	profile, err := o.store.GetProfile(ctx, sess.ID, identityID)
	if err != nil {
		profile = model.PersonalityProfile{}
	}
	knowledge, err := o.store.ListKnowledge(ctx, 5)
	if err != nil {
		knowledge = nil
	}

	history, err := o.store.ListExchanges(ctx, sess.ID, storage.ExchangeFilter{Phase: sess.Status})
	if err != nil {
		history = nil
	}

	system := ai.BuildImpersonationSystem(participant.Username, profile, knowledge)
	msgs := ai.BuildLearningMessages(history, humanMessage)
	msgs[0].Content = system

	raw, err := o.generator.Generate(ctx, msgs, 0.9, 200)
	if err != nil || raw == "" {
		log.Printf("[ai] impersonated reply failed for %s: %v", identityID, err)
		return fallbackText
	}
	return raw
}

// replyInPrivateRound lets the AI answer when the sender's partner this round
// is the impostor's seat.
func (o *Orchestrator) replyInPrivateRound(sessionID string, roundNumber int, senderID, humanMessage string) {
	ctx := context.Background()
	pairings, err := o.store.ListPairings(ctx, sessionID)
	if err != nil {
		return
	}
	pairing, ok := pairingFor(pairings, roundNumber, senderID)
	if !ok || pairing.PartnerOf(senderID) != model.AISender {
		return
	}

	sess, err := o.store.GetSession(ctx, sessionID)
	if err != nil {
		return
	}

	impersonated, err := o.store.GetParticipant(ctx, pairing.ImpersonatingID)
	if err != nil {
		return
	}

	text := o.impersonatedReply(ctx, sess, pairing.ImpersonatingID, humanMessage)
	if profile, perr := o.store.GetProfile(ctx, sessionID, pairing.ImpersonatingID); perr == nil {
		text = ai.ApplyTypingStyle(text, profile.TypingPatterns, o.lockedRng())
	}

	latencyMS := o.latency.Mimic(sessionID, pairing.ImpersonatingID)
	o.timers.Schedule(sessionID, time.Duration(latencyMS)*time.Millisecond, func() {
		bg := context.Background()
		current, err := o.store.GetSession(bg, sessionID)
		if err != nil || current.Status != model.StatusPlaying || current.CurrentRound != roundNumber {
			return
		}
		exchange := model.Exchange{
			SessionID:       sessionID,
			RoundNumber:     roundNumber,
			Phase:           model.StatusPlaying,
			SenderID:        model.AISender,
			RecipientID:     senderID,
			ImpersonatingID: pairing.ImpersonatingID,
			Content:         text,
			IsAI:            true,
			Alias:           impersonated.Alias,
			AliasBadge:      impersonated.AliasBadge,
			AliasColor:      impersonated.AliasColor,
			LatencyMS:       latencyMS,
			Timestamp:       time.Now().UTC(),
		}
		exchange, err = o.store.AppendExchange(bg, exchange)
		if err != nil {
			return
		}
		o.hub.Unicast(sessionID, senderID, exchangeEvent(exchange))
	})
}
