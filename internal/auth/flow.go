package auth

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"
)

// flowTTL bounds how long a started authorization flow stays redeemable.
const flowTTL = 10 * time.Minute

// pendingFlow holds the per-flow secrets between BeginAuth and
// CompleteAuth. The verifier never leaves the process.
type pendingFlow struct {
	provider Provider
	verifier string
	started  time.Time
}

// flowStore keeps pending flows keyed by their state parameter. Flows
// are single-use: taking one removes it, so a replayed callback cannot
// redeem the same state twice.
type flowStore struct {
	mu    sync.Mutex
	flows map[string]pendingFlow
}

func newFlowStore() *flowStore {
	return &flowStore{flows: make(map[string]pendingFlow)}
}

func (s *flowStore) put(state string, flow pendingFlow) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for k, f := range s.flows {
		if time.Since(f.started) > flowTTL {
			delete(s.flows, k)
		}
	}
	s.flows[state] = flow
}

func (s *flowStore) take(state string) (pendingFlow, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	flow, ok := s.flows[state]
	if !ok {
		return pendingFlow{}, false
	}
	delete(s.flows, state)

	if time.Since(flow.started) > flowTTL {
		return pendingFlow{}, false
	}
	return flow, true
}

func newState() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate state: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
