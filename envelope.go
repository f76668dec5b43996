package main

import (
	"encoding/json"
	"errors"
)

// Tag identifies the kind of payload an envelope carries. The set below is
// closed; dispatch in hub.go matches every inbound tag exhaustively and
// ignores anything else.
type Tag string

// Tags consumed by the server.
const (
	TagLoginAttempt    Tag = "login_attempt"
	TagDisconnect      Tag = "disconnect"
	TagCreateChallenge Tag = "create_challenge"
	TagDeleteChallenge Tag = "delete_challenge"
	TagAcceptChallenge Tag = "accept_challenge"
	TagChangePosition  Tag = "change_position"
	TagLeavingGame     Tag = "leaving_game"
	TagWonReport       Tag = "player_have_won_a_game"
	TagPublicMessage   Tag = "public_message"
	TagPrivateMessage  Tag = "private_message"
	TagHeartbeat       Tag = "heartbeat"
)

// Tags emitted by the server.
const (
	TagLoginSuccessful   Tag = "login_successful"
	TagWrongLoginName    Tag = "wrong_login_name"
	TagUserCountChange   Tag = "user_count_change"
	TagReceivedChallenge Tag = "received_challenge"
	TagAcceptedChallenge Tag = "accepted_challenge"
	TagChallengeVoid     Tag = "challenge_no_longer_valid"
	TagLeftGame          Tag = "left_game"
	TagPlayerWon         Tag = "player_has_won_a_game"
	TagOpponentMoved     Tag = "opponent_changed_position"
)

// Envelope is the unit of wire communication: a tag plus a tag-specific
// JSON body.
type Envelope struct {
	Tag  Tag             `json:"tag"`
	Data json.RawMessage `json:"data,omitempty"`
}

var errNoData = errors.New("envelope has no data")

func (e Envelope) decode(v any) error {
	if len(e.Data) == 0 {
		return errNoData
	}
	return json.Unmarshal(e.Data, v)
}

// envelopeOf builds an envelope around v. Marshalling only fails for types
// we never send, so the error is dropped the same way the teacher drops
// WriteJSON preparation errors.
func envelopeOf(tag Tag, v any) Envelope {
	if v == nil {
		return Envelope{Tag: tag}
	}
	data, _ := json.Marshal(v)
	return Envelope{Tag: tag, Data: data}
}

// LoginSnapshot is the full state a freshly logged-in client needs: who is
// online, which matches are running, the score table, and the public chat
// so far.
type LoginSnapshot struct {
	Names   []string       `json:"names"`
	Matches [][2]string    `json:"matches"`
	Scores  map[string]int `json:"scores"`
	Chat    []string       `json:"chat"`
}

// PresenceUpdate is the diff sent to everyone else on membership changes.
type PresenceUpdate struct {
	Names  []string       `json:"names"`
	Scores map[string]int `json:"scores"`
}

// MazePayload is the shared maze a match is played on. Grid cells are 1 for
// open, 0 for wall. Starts maps each participant's name to their start tile.
type MazePayload struct {
	Size   int             `json:"size"`
	Grid   [][]int         `json:"grid"`
	Goal   Tile            `json:"goal"`
	Starts map[string]Tile `json:"starts"`
}

// AcceptedChallenge tells one participant who they are playing and on what.
type AcceptedChallenge struct {
	Opponent string      `json:"opponent"`
	Maze     MazePayload `json:"maze"`
}

// ChallengeVoid names the two players whose pending challenges just became
// invalid because they entered a match.
type ChallengeVoid struct {
	Players [2]string `json:"players"`
}
