// Package broadcast fans session events out to subscribers over named
// channels. Publishers never block on a slow subscriber; a full outbox
// drops the envelope for that subscriber only.
package broadcast

// Kind identifies what a broadcast envelope announces.
type Kind string

const (
	// KindJoined announces a participant taking a seat.
	KindJoined Kind = "joined"
	// KindMoved announces an accepted move.
	KindMoved Kind = "moved"
	// KindGameOver announces a terminal outcome.
	KindGameOver Kind = "gameOver"
	// KindLeft announces a participant leaving.
	KindLeft Kind = "left"
	// KindSystem carries an informational notice.
	KindSystem Kind = "system"
	// KindError reports a rejected operation back to its channel.
	KindError Kind = "error"
)

// LobbyChannel receives session lifecycle notices that are not tied to a
// single running session.
const LobbyChannel = "session.lobby"

// SessionChannel names the per-session channel for the given session ID.
func SessionChannel(id string) string {
	return "session." + id
}

// Envelope is the wire message delivered to subscribers. Fields that do not
// apply to a given kind are omitted from the encoding.
type Envelope struct {
	Kind         Kind       `json:"type"`
	SessionID    string     `json:"sessionId,omitempty"`
	Sender       string     `json:"sender,omitempty"`
	ParticipantA string     `json:"participantA,omitempty"`
	ParticipantB string     `json:"participantB,omitempty"`
	Turn         string     `json:"turn,omitempty"`
	Status       string     `json:"status,omitempty"`
	Winner       string     `json:"winner,omitempty"`
	Board        [][]string `json:"board,omitempty"`
	Move         string     `json:"move,omitempty"`
	Content      string     `json:"content,omitempty"`
	Code         string     `json:"code,omitempty"`
}
