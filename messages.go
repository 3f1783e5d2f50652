package main

// Wire protocol for the challenge websocket. Every message carries a "type"
// discriminator; unknown types are dropped at the read pump.

// PathNode is one step of a player's reported path. The coordinator only ever
// inspects the final node's ID; everything else is relayed opaquely so the
// opponent's client can render it.
type PathNode struct {
	ID       string `json:"id"`
	Kind     string `json:"kind,omitempty"` // "actor" or "movie"
	Name     string `json:"name,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// Messages coming from clients
type ClientMessage struct {
	Type        string     `json:"type"`                   // "join", "report_path", "cancel"
	ChallengeID string     `json:"challenge_id,omitempty"` // join
	UserID      string     `json:"user_id,omitempty"`      // join, for clients that did not bind at connect
	Path        []PathNode `json:"path,omitempty"`         // report_path
}

// PublicProfile is the subset of a stored profile shared with an opponent.
type PublicProfile struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Rating   int    `json:"rating"`
	Rank     string `json:"rank"`
}

// SessionStartedMessage is sent privately to each participant once the second
// distinct player joins. The two copies differ only in the opponent field.
type SessionStartedMessage struct {
	Type     string        `json:"type"` // "session_started"
	StartID  string        `json:"start_id"`
	TargetID string        `json:"target_id"`
	Opponent PublicProfile `json:"opponent"`
}

// PathUpdateMessage relays one player's path to the other, never echoed back.
type PathUpdateMessage struct {
	Type string     `json:"type"` // "path_update"
	Path []PathNode `json:"path"`
}

// SessionEndedMessage is broadcast to both participants when a path reaches
// the target. RatingChanges is empty when the winner had no opponent left.
type SessionEndedMessage struct {
	Type          string         `json:"type"` // "session_ended"
	WinnerID      string         `json:"winner_id"`
	RatingChanges map[string]int `json:"rating_changes"`
}

// OpponentLeftMessage tells the sole remaining participant their opponent
// disconnected or cancelled. No rating change accompanies it.
type OpponentLeftMessage struct {
	Type string `json:"type"` // "opponent_left"
}

// JoinErrorMessage is sent only to the affected connection, never broadcast.
type JoinErrorMessage struct {
	Type    string `json:"type"` // "join_error"
	Message string `json:"message"`
}
