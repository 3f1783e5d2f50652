// Sixdegrees challenge coordinator
//
// Two players race from a shared start node to a shared target node through
// the content graph. Each player browses privately, reporting their growing
// path over a websocket; the coordinator relays it to the opponent and ends
// the match the moment a reported path's final node is the target.
//
// Lifecycle: a challenge is created over plain HTTP and sits Waiting until
// two distinct players have joined over websockets. The second join resolves
// both profiles and flips the session Active; the first report to reach the
// target wins, adjusts both ratings and removes the session. Cancellation or
// a disconnect tears the session down and tells the remaining player, if any.
//
// All read-then-write access to one session is serialized by the session's
// own mutex, which is what makes "first report processed wins" well-defined.
// Different sessions share nothing.

package main

import (
	"context"
	"crypto/rand"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/skip2/go-qrcode"

	"github.com/Seednode/sixdegrees/store"
)

// Bound on profile lookups and rating writes so no session operation can
// block indefinitely on the store.
const storeTimeout = 5 * time.Second

type Client struct {
	id   string
	conn *websocket.Conn
	send chan any
}

// trySend never blocks; a message to a slow or dead connection is dropped so
// it cannot hold up delivery to the other participant.
func (c *Client) trySend(msg any) {
	select {
	case c.send <- msg:
	default:
	}
}

// Coordinator owns the challenge and connection registries and is the only
// component that mutates session state.
type Coordinator struct {
	cfg        *Config
	profiles   store.ProfileStore
	challenges *ChallengeRegistry
	conns      *ConnectionRegistry
}

func newCoordinator(cfg *Config, profiles store.ProfileStore) *Coordinator {
	co := &Coordinator{
		cfg:        cfg,
		profiles:   profiles,
		challenges: newChallengeRegistry(),
		conns:      newConnectionRegistry(),
	}
	if cfg.challengeTimeout > 0 {
		go co.reaperLoop(cfg.challengeTimeout)
	}
	return co
}

// newChallengeID generates a crypto-random challenge ID and ensures it
// doesn't collide with existing challenges.
func (co *Coordinator) newChallengeID() string {
	const letters = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"
	for {
		buf := make([]byte, 8)
		if _, err := rand.Read(buf); err != nil {
			panic("crypto/rand failure: " + err.Error())
		}
		out := make([]byte, 8)
		for i := range out {
			out[i] = letters[int(buf[i])%len(letters)]
		}
		id := string(out)

		if !co.challenges.exists(id) {
			return id
		}
	}
}

// CreateChallenge inserts a Waiting session with no participants. The id is
// caller-supplied or generated; either way it is stable for the session's
// lifetime. No connection is touched.
func (co *Coordinator) CreateChallenge(challengeID, startID, targetID string) (string, error) {
	if challengeID == "" {
		challengeID = co.newChallengeID()
	}
	if _, err := co.challenges.create(challengeID, startID, targetID); err != nil {
		return "", err
	}
	logf(co.cfg, "GAMES: Challenge %s created (start: %s, target: %s)", challengeID, startID, targetID)
	return challengeID, nil
}

// Join adds the connection's player to a challenge. The first distinct player
// leaves the session Waiting; the second resolves both profiles and starts
// the match. A player already in the session just gets its connection
// rebound, which is what makes reconnects work.
func (co *Coordinator) Join(c *Client, userID, challengeID string) {
	if userID != "" {
		co.conns.bind(c, userID)
	}
	b, ok := co.conns.lookup(c)
	if !ok || b.userID == "" {
		c.trySend(JoinErrorMessage{
			Type:    "join_error",
			Message: "No player identity is bound to this connection.",
		})
		return
	}
	userID = b.userID

	sess, ok := co.challenges.get(challengeID)
	if !ok {
		c.trySend(JoinErrorMessage{
			Type:    "join_error",
			Message: "This challenge does not exist or has already ended.",
		})
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.terminal() {
		c.trySend(JoinErrorMessage{
			Type:    "join_error",
			Message: "This challenge does not exist or has already ended.",
		})
		return
	}

	if _, rejoining := sess.participants[userID]; rejoining {
		sess.participants[userID] = c
		_ = co.conns.joinChallenge(c, challengeID)
		logf(co.cfg, "GAMES: Player %s reconnected to challenge %s", userID, sess.id)
		return
	}

	if len(sess.participants) >= 2 {
		c.trySend(JoinErrorMessage{
			Type:    "join_error",
			Message: "This challenge already has two players.",
		})
		return
	}

	if err := co.conns.joinChallenge(c, challengeID); err != nil {
		c.trySend(JoinErrorMessage{
			Type:    "join_error",
			Message: "No player identity is bound to this connection.",
		})
		return
	}
	sess.participants[userID] = c
	logf(co.cfg, "GAMES: Player %s joined challenge %s (%d/2)", userID, sess.id, len(sess.participants))

	if len(sess.participants) < 2 {
		return
	}

	co.startSessionLocked(sess, c, userID)
}

// startSessionLocked runs the Waiting -> Active transition after the second
// distinct join. A profile store failure rolls the second slot back and
// reports to both connections, leaving the session Waiting so either player
// can retry. Callers must hold sess.mu.
func (co *Coordinator) startSessionLocked(sess *Session, second *Client, secondUserID string) {
	ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
	defer cancel()

	profiles := make(map[string]store.Profile, 2)
	var resolveErr error
	for id := range sess.participants {
		p, err := co.profiles.GetByID(ctx, id)
		if err != nil {
			resolveErr = err
			break
		}
		profiles[id] = p
	}

	if resolveErr != nil {
		delete(sess.participants, secondUserID)
		co.conns.leaveChallenge(second)

		log.Printf("%s | ERROR: Resolving profiles for challenge %s: %v",
			time.Now().Format(logDate), sess.id, resolveErr)

		notice := JoinErrorMessage{
			Type:    "join_error",
			Message: "Could not fetch player profiles. Please try again.",
		}
		second.trySend(notice)
		for _, client := range sess.participants {
			client.trySend(notice)
		}
		return
	}

	sess.state = stateActive

	for id, client := range sess.participants {
		opponentID, _ := sess.opponentOf(id)
		client.trySend(SessionStartedMessage{
			Type:     "session_started",
			StartID:  sess.startID,
			TargetID: sess.targetID,
			Opponent: publicProfile(profiles[opponentID]),
		})
	}

	logf(co.cfg, "GAMES: Challenge %s started", sess.id)
}

// ReportPath stores the reporting player's latest path, relays it to the
// opponent, and ends the session if the path's final node is the target.
// Reports from connections not bound to an active session are dropped, which
// also covers reports racing a just-finished match.
func (co *Coordinator) ReportPath(c *Client, path []PathNode) {
	if len(path) == 0 {
		return
	}
	b, ok := co.conns.lookup(c)
	if !ok || b.userID == "" || b.challengeID == "" {
		return
	}
	sess, ok := co.challenges.get(b.challengeID)
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != stateActive {
		return
	}

	// Only the participant's current connection may report for it.
	if current, bound := sess.participants[b.userID]; !bound || current != c {
		return
	}

	sess.paths[b.userID] = path

	co.conns.broadcast(sess.id, c, PathUpdateMessage{
		Type: "path_update",
		Path: path,
	})

	if path[len(path)-1].ID != sess.targetID {
		return
	}

	co.finishLocked(sess, b.userID)
}

// finishLocked settles a decided match: ratings first, then the end
// broadcast, then removal. A rating persistence failure is logged as a
// discrepancy but never rolls back the outcome. Callers must hold sess.mu.
func (co *Coordinator) finishLocked(sess *Session, winnerID string) {
	ratingChanges := make(map[string]int)

	// A missing opponent (race with a disconnect) is still a win, just one
	// with no rating movement.
	if loserID, ok := sess.opponentOf(winnerID); ok {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		winner, werr := co.profiles.GetByID(ctx, winnerID)
		loser, lerr := co.profiles.GetByID(ctx, loserID)
		if werr != nil || lerr != nil {
			log.Printf("%s | ERROR: Resolving ratings for challenge %s: %v",
				time.Now().Format(logDate), sess.id, errors.Join(werr, lerr))
		} else {
			delta := computeDelta(winner.Rating, loser.Rating)
			if err := co.profiles.UpdateRating(ctx, winnerID, winner.Rating+delta); err != nil {
				log.Printf("%s | ERROR: Rating write for %s after challenge %s: %v",
					time.Now().Format(logDate), winnerID, sess.id, err)
			}
			if err := co.profiles.UpdateRating(ctx, loserID, loser.Rating-delta); err != nil {
				log.Printf("%s | ERROR: Rating write for %s after challenge %s: %v",
					time.Now().Format(logDate), loserID, sess.id, err)
			}
			ratingChanges[winnerID] = delta
			ratingChanges[loserID] = -delta
		}
	}

	sess.state = stateCompleted
	co.conns.broadcast(sess.id, nil, SessionEndedMessage{
		Type:          "session_ended",
		WinnerID:      winnerID,
		RatingChanges: ratingChanges,
	})
	co.challenges.remove(sess.id)

	logf(co.cfg, "GAMES: Challenge %s won by %s", sess.id, winnerID)
}

// Cancel tears down the session the connection is bound to. Only an Active
// session's other participant hears about it.
func (co *Coordinator) Cancel(c *Client) {
	b, ok := co.conns.lookup(c)
	if !ok || b.challengeID == "" {
		return
	}
	sess, ok := co.challenges.get(b.challengeID)
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.terminal() {
		return
	}

	wasActive := sess.state == stateActive
	sess.state = stateCancelled
	if wasActive {
		co.conns.broadcast(sess.id, c, OpponentLeftMessage{Type: "opponent_left"})
	}
	co.challenges.remove(sess.id)

	logf(co.cfg, "GAMES: Challenge %s cancelled by %s", sess.id, b.userID)
}

// Disconnect unbinds the connection and tears down its session, if any. A
// Waiting session goes silently; an Active one leaves the remaining player
// with an opponent_left notice, winning by forfeit with no rating change.
func (co *Coordinator) Disconnect(c *Client) {
	b, ok := co.conns.unbind(c)
	if !ok || b.challengeID == "" {
		return
	}
	sess, ok := co.challenges.get(b.challengeID)
	if !ok {
		return
	}

	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.terminal() {
		return
	}

	// A stale disconnect from a connection the player already replaced must
	// not kill the session.
	if current, bound := sess.participants[b.userID]; !bound || current != c {
		return
	}
	delete(sess.participants, b.userID)

	if sess.state == stateActive && len(sess.participants) > 0 {
		co.conns.broadcast(sess.id, c, OpponentLeftMessage{Type: "opponent_left"})
	}
	sess.state = stateCancelled
	co.challenges.remove(sess.id)

	logf(co.cfg, "GAMES: Challenge %s removed after %s disconnected", sess.id, b.userID)
}

// reaperLoop periodically evicts challenges that sat Waiting longer than
// timeout without attracting a second player.
func (co *Coordinator) reaperLoop(timeout time.Duration) {
	ticker := time.NewTicker(timeout / 2)
	for range ticker.C {
		cutoff := time.Now().Add(-timeout)

		for _, sess := range co.challenges.waitingOlderThan(cutoff) {
			sess.mu.Lock()
			if sess.state == stateWaiting && sess.createdAt.Before(cutoff) {
				sess.state = stateCancelled
				co.challenges.remove(sess.id)
				logf(co.cfg, "GAMES: Challenge %s expired unjoined", sess.id)
			}
			sess.mu.Unlock()
		}
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// serveChallengeWS upgrades the connection and binds the caller-supplied
// identity from the user query parameter, when present. Clients without one
// must carry user_id on their first join message instead.
func serveChallengeWS(cfg *Config, co *Coordinator) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Println("upgrade error:", err)
			return
		}

		client := &Client{
			id:   uuid.NewString(),
			conn: conn,
			send: make(chan any, 8),
		}

		if userID := r.URL.Query().Get("user"); userID != "" {
			co.conns.bind(client, userID)
		}

		logf(cfg, "GAMES: Connection %s opened from %s", client.id, realIP(r))

		go client.writePump()
		client.readPump(co)
	}
}

func (c *Client) readPump(co *Coordinator) {
	defer func() {
		co.Disconnect(c)
		close(c.send)
		_ = c.conn.Close()
	}()

	for {
		var msg ClientMessage
		if err := c.conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "join":
			co.Join(c, msg.UserID, msg.ChallengeID)
		case "report_path":
			co.ReportPath(c, msg.Path)
		case "cancel":
			co.Cancel(c)
		default:
			// ignore unknown types
		}
	}
}

func (c *Client) writePump() {
	defer c.conn.Close()

	for msg := range c.send {
		if err := c.conn.WriteJSON(msg); err != nil {
			return
		}
	}
}

// qrHandler generates a PNG QR code pointing at the join URL for a
// challenge, so the second player can be invited by pointing a phone at the
// first player's screen.
func qrHandler(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	challengeID := ps.ByName("challengeid")
	if challengeID == "" {
		http.Error(w, "missing challenge id", http.StatusBadRequest)
		return
	}

	// Derive scheme (respecting TLS and X-Forwarded-Proto if present).
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}

	url := scheme + "://" + r.Host + "/join/" + challengeID

	const qrSize = 320 // mobile-friendly size
	png, err := qrcode.Encode(url, qrcode.Medium, qrSize)
	if err != nil {
		http.Error(w, "qr generation failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	_, _ = w.Write(png)
}
