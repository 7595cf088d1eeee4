package game

import (
	"math/rand"
	"sync"
)

const (
	latencySampleCap = 20

	// Band drawn from when no samples exist for an identity.
	defaultLatencyMinMS = 1200
	defaultLatencyMaxMS = 3500

	// Absolute clamp: the impostor never answers implausibly fast or slow.
	latencyFloorMS   = 800
	latencyCeilingMS = 6000

	// Observed means are perturbed by a factor in [1-latencyJitter, 1+latencyJitter].
	latencyJitter = 0.3
)

// LatencyModel records observed human response latencies per (session,
// identity) and derives plausible delays for AI-authored messages.
type LatencyModel struct {
	mu      sync.Mutex
	rng     *rand.Rand
	samples map[string]map[string][]int
}

// NewLatencyModel builds a model around the given random source.
func NewLatencyModel(rng *rand.Rand) *LatencyModel {
	return &LatencyModel{
		rng:     rng,
		samples: make(map[string]map[string][]int),
	}
}

// Record appends an observed latency to the identity's ring buffer, evicting
// the oldest sample once the buffer is full.
func (m *LatencyModel) Record(sessionID, identityID string, latencyMS int) {
	if latencyMS <= 0 {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	byIdentity, ok := m.samples[sessionID]
	if !ok {
		byIdentity = make(map[string][]int)
		m.samples[sessionID] = byIdentity
	}
	buf := append(byIdentity[identityID], latencyMS)
	if len(buf) > latencySampleCap {
		buf = buf[len(buf)-latencySampleCap:]
	}
	byIdentity[identityID] = buf
}

// Mimic derives a plausible latency for the AI speaking as the given
// identity. With no samples it draws from the wide default band; with
// samples it perturbs the mean and clamps to the absolute floor/ceiling.
func (m *LatencyModel) Mimic(sessionID, identityID string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	buf := m.samples[sessionID][identityID]
	if len(buf) == 0 {
		return defaultLatencyMinMS + m.rng.Intn(defaultLatencyMaxMS-defaultLatencyMinMS+1)
	}

	var sum int
	for _, sample := range buf {
		sum += sample
	}
	mean := float64(sum) / float64(len(buf))

	factor := 1 - latencyJitter + m.rng.Float64()*2*latencyJitter
	latency := int(mean * factor)

	if latency < latencyFloorMS {
		latency = latencyFloorMS
	}
	if latency > latencyCeilingMS {
		latency = latencyCeilingMS
	}
	return latency
}

// Clear drops all samples held for a session.
func (m *LatencyModel) Clear(sessionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.samples, sessionID)
}
