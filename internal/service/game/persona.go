package game

import (
	"math/rand"
	"sync"

	model "github.com/hakoke/impostor/internal/model/game"
)

// aliasPool is the fixed set of code names handed out at join time. Game
// sizes are capped well below the pool size; if the pool ever runs dry we
// re-use entries rather than fail the join.
var aliasPool = []string{
	"Specter", "Nova", "Cipher", "Vertex", "Quasar", "Ember", "Drift",
	"Halo", "Onyx", "Lumen", "Raven", "Flux", "Mirage", "Echo", "Zephyr",
	"Prism", "Static", "Wraith", "Pulse", "Grit",
}

var aliasColors = []string{
	"#ff5470", "#3da9fc", "#ffd803", "#7f5af0", "#2cb67d",
	"#f25f4c", "#00ebc7", "#e53170", "#6246ea", "#ff8906",
}

// usageWeightK controls how fast a persona's selection weight decays as it
// keeps getting used: weight = 1 / (1 + uses*k).
const usageWeightK = 0.5

// Allocator assigns stable alias identities to participants and tracks how
// often the impostor has spoken through each one.
type Allocator struct {
	mu       sync.Mutex
	rng      *rand.Rand
	assigned map[string]map[string]string // session -> alias -> participant
	usage    map[string]map[string]int    // session -> identity -> uses
}

// NewAllocator builds an allocator around the given random source. Inject a
// seeded source in tests for deterministic picks.
func NewAllocator(rng *rand.Rand) *Allocator {
	return &Allocator{
		rng:      rng,
		assigned: make(map[string]map[string]string),
		usage:    make(map[string]map[string]int),
	}
}

// Assign picks an alias not yet used in the session and binds it to the
// participant. The binding is immutable; callers must not re-derive alias
// text elsewhere.
func (a *Allocator) Assign(sessionID, participantID string) (alias, badge, color string) {
	a.mu.Lock()
	defer a.mu.Unlock()

	taken, ok := a.assigned[sessionID]
	if !ok {
		taken = make(map[string]string)
		a.assigned[sessionID] = taken
	}

	free := make([]string, 0, len(aliasPool))
	for _, candidate := range aliasPool {
		if _, used := taken[candidate]; !used {
			free = append(free, candidate)
		}
	}
	if len(free) == 0 {
		// Pool exhausted; accept a collision rather than fail the join.
		free = aliasPool
	}

	alias = free[a.rng.Intn(len(free))]
	taken[alias] = participantID
	badge = string([]rune(alias)[0])
	color = aliasColors[a.rng.Intn(len(aliasColors))]
	return alias, badge, color
}

// UsageWeight returns a monotonically decreasing weight as an identity's
// usage count rises, used to bias which persona the impostor speaks as next.
func (a *Allocator) UsageWeight(sessionID, identityID string) float64 {
	a.mu.Lock()
	defer a.mu.Unlock()
	uses := a.usage[sessionID][identityID]
	return 1.0 / (1.0 + float64(uses)*usageWeightK)
}

// MarkUsed increments an identity's usage count. Called only after a message
// was actually emitted, so considered-but-unused personas are not penalized.
func (a *Allocator) MarkUsed(sessionID, identityID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	counts, ok := a.usage[sessionID]
	if !ok {
		counts = make(map[string]int)
		a.usage[sessionID] = counts
	}
	counts[identityID]++
}

// PickWeighted selects one persona from the bindings, biased by usage
// weights. Fallback path when the generation collaborator's own choice is
// missing or unusable.
func (a *Allocator) PickWeighted(sessionID string, personas map[string]model.PersonaBinding) (model.PersonaBinding, bool) {
	if len(personas) == 0 {
		return model.PersonaBinding{}, false
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	ids := make([]string, 0, len(personas))
	weights := make([]float64, 0, len(personas))
	var total float64
	for id := range personas {
		uses := a.usage[sessionID][id]
		w := 1.0 / (1.0 + float64(uses)*usageWeightK)
		ids = append(ids, id)
		weights = append(weights, w)
		total += w
	}

	pick := a.rng.Float64() * total
	for i, id := range ids {
		pick -= weights[i]
		if pick <= 0 {
			return personas[id], true
		}
	}
	return personas[ids[len(ids)-1]], true
}

// Clear drops all alias and usage state for a session.
func (a *Allocator) Clear(sessionID string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.assigned, sessionID)
	delete(a.usage, sessionID)
}
