package main

import (
	"errors"
	"sync"
	"time"
)

var (
	errDuplicateChallenge = errors.New("challenge id already exists")
	errNotBound           = errors.New("connection has no identity")
)

type sessionState int

const (
	stateWaiting sessionState = iota
	stateActive
	stateCompleted
	stateCancelled
)

// Session is the live state of one challenge. All read-then-write access to
// state, participants or paths must happen under mu; operations on different
// sessions never share a lock.
type Session struct {
	mu sync.Mutex

	id       string
	startID  string
	targetID string

	state        sessionState
	participants map[string]*Client    // userID -> live connection, at most 2
	paths        map[string][]PathNode // latest reported path per participant

	createdAt time.Time
}

func (s *Session) terminal() bool {
	return s.state == stateCompleted || s.state == stateCancelled
}

// opponentOf returns the other participant, if the session still has one.
// Callers must hold s.mu.
func (s *Session) opponentOf(userID string) (string, bool) {
	for id := range s.participants {
		if id != userID {
			return id, true
		}
	}
	return "", false
}

// ChallengeRegistry is the authoritative table of sessions, keyed by
// challenge id. Sessions are removed the moment they reach a terminal state,
// so presence in the registry doubles as a liveness check.
type ChallengeRegistry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func newChallengeRegistry() *ChallengeRegistry {
	return &ChallengeRegistry{
		sessions: make(map[string]*Session),
	}
}

func (r *ChallengeRegistry) create(challengeID, startID, targetID string) (*Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.sessions[challengeID]; exists {
		return nil, errDuplicateChallenge
	}

	sess := &Session{
		id:           challengeID,
		startID:      startID,
		targetID:     targetID,
		state:        stateWaiting,
		participants: make(map[string]*Client),
		paths:        make(map[string][]PathNode),
		createdAt:    time.Now(),
	}
	r.sessions[challengeID] = sess
	return sess, nil
}

func (r *ChallengeRegistry) get(challengeID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sess, ok := r.sessions[challengeID]
	return sess, ok
}

// remove is idempotent.
func (r *ChallengeRegistry) remove(challengeID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.sessions, challengeID)
}

func (r *ChallengeRegistry) exists(challengeID string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.sessions[challengeID]
	return ok
}

// waitingOlderThan returns sessions still in Waiting created before cutoff,
// for the eviction loop. Session state is checked after releasing the
// registry lock; session locks are always taken first elsewhere, so taking
// them under r.mu could deadlock against a removal in progress.
func (r *ChallengeRegistry) waitingOlderThan(cutoff time.Time) []*Session {
	r.mu.RLock()
	all := make([]*Session, 0, len(r.sessions))
	for _, sess := range r.sessions {
		all = append(all, sess)
	}
	r.mu.RUnlock()

	var stale []*Session
	for _, sess := range all {
		sess.mu.Lock()
		if sess.state == stateWaiting && sess.createdAt.Before(cutoff) {
			stale = append(stale, sess)
		}
		sess.mu.Unlock()
	}
	return stale
}

// Binding associates a live connection with a player identity and, once
// joined, a challenge. It never outlives the underlying connection.
type Binding struct {
	userID      string
	challengeID string
}

// ConnectionRegistry tracks identity and challenge membership per live
// connection, plus the reverse challenge -> connections mapping used for
// broadcast.
type ConnectionRegistry struct {
	mu          sync.RWMutex
	bindings    map[*Client]Binding
	byChallenge map[string]map[*Client]bool
}

func newConnectionRegistry() *ConnectionRegistry {
	return &ConnectionRegistry{
		bindings:    make(map[*Client]Binding),
		byChallenge: make(map[string]map[*Client]bool),
	}
}

// bind records the connection's identity. Called once at connect time, or on
// the first join message for clients that did not send credentials upfront.
func (r *ConnectionRegistry) bind(c *Client, userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b := r.bindings[c]
	b.userID = userID
	r.bindings[c] = b
}

func (r *ConnectionRegistry) joinChallenge(c *Client, challengeID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[c]
	if !ok || b.userID == "" {
		return errNotBound
	}

	if b.challengeID != "" && b.challengeID != challengeID {
		r.dropMembershipLocked(c, b.challengeID)
	}

	b.challengeID = challengeID
	r.bindings[c] = b

	members, ok := r.byChallenge[challengeID]
	if !ok {
		members = make(map[*Client]bool)
		r.byChallenge[challengeID] = members
	}
	members[c] = true
	return nil
}

// leaveChallenge clears the connection's challenge association without
// touching its identity. Used when a join is rolled back.
func (r *ConnectionRegistry) leaveChallenge(c *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[c]
	if !ok || b.challengeID == "" {
		return
	}
	r.dropMembershipLocked(c, b.challengeID)
	b.challengeID = ""
	r.bindings[c] = b
}

func (r *ConnectionRegistry) lookup(c *Client) (Binding, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.bindings[c]
	return b, ok
}

// unbind removes the connection entirely and returns its last known state so
// the coordinator can react to the disconnect.
func (r *ConnectionRegistry) unbind(c *Client) (Binding, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	b, ok := r.bindings[c]
	if !ok {
		return Binding{}, false
	}
	if b.challengeID != "" {
		r.dropMembershipLocked(c, b.challengeID)
	}
	delete(r.bindings, c)
	return b, true
}

// broadcast delivers msg to every live connection bound to the challenge,
// optionally excluding one. Delivery is best-effort: a slow connection has
// its message dropped rather than blocking the others.
func (r *ConnectionRegistry) broadcast(challengeID string, except *Client, msg any) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for c := range r.byChallenge[challengeID] {
		if c == except {
			continue
		}
		c.trySend(msg)
	}
}

func (r *ConnectionRegistry) dropMembershipLocked(c *Client, challengeID string) {
	members, ok := r.byChallenge[challengeID]
	if !ok {
		return
	}
	delete(members, c)
	if len(members) == 0 {
		delete(r.byChallenge, challengeID)
	}
}
