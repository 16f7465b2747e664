package engine

import (
	"context"
	"strings"
	"time"

	"github.com/lox/roomwager/internal/cards"
	"github.com/lox/roomwager/internal/outcome"
)

// Variant selects which game a session runs
type Variant string

const (
	// Elimination is the multi-round lowest-card-out game
	Elimination Variant = "lowcard"
	// Comparison is the single-coup player/banker/tie betting game
	Comparison Variant = "baccarat"
)

// ParseVariant accepts the canonical names and their aliases
func ParseVariant(s string) (Variant, bool) {
	switch strings.ToLower(s) {
	case "lowcard", "elimination", "low":
		return Elimination, true
	case "baccarat", "comparison", "bacc":
		return Comparison, true
	}
	return "", false
}

// Title is the display name used in room messages
func (v Variant) Title() string {
	switch v {
	case Elimination:
		return "LowCard"
	case Comparison:
		return "Baccarat"
	default:
		return string(v)
	}
}

// Phase is a state of the session state machine
type Phase string

const (
	PhaseLobby          Phase = "lobby"
	PhaseRoundActive    Phase = "round_active"
	PhaseRoundResolving Phase = "round_resolving"
	PhaseBetting        Phase = "betting"
	PhaseDealing        Phase = "dealing"
	PhaseFinished       Phase = "finished"
	PhaseCancelled      Phase = "cancelled"
)

// Terminal reports whether no further transitions are possible
func (p Phase) Terminal() bool {
	return p == PhaseFinished || p == PhaseCancelled
}

// Accepting reports whether new reservations may be made
func (p Phase) Accepting() bool {
	return p == PhaseLobby || p == PhaseBetting
}

// ReservationState tracks a participant's claim on their stake
type ReservationState int

const (
	Absent ReservationState = iota
	Pending
	Confirmed
)

func (r ReservationState) String() string {
	switch r {
	case Pending:
		return "pending"
	case Confirmed:
		return "confirmed"
	default:
		return "absent"
	}
}

// Role is the chat-level role of the user issuing a command
type Role string

const (
	RoleMember    Role = "member"
	RoleModerator Role = "moderator"
	RoleAdmin     Role = "admin"
)

// Privileged reports whether the role may force transitions and toggle the engine
func (r Role) Privileged() bool {
	return r == RoleModerator || r == RoleAdmin
}

// ParseRole maps a role name to a Role, defaulting to RoleMember
func ParseRole(s string) Role {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleModerator, "mod":
		return RoleModerator
	case RoleAdmin:
		return RoleAdmin
	default:
		return RoleMember
	}
}

// User identifies the sender of a command
type User struct {
	ID   string
	Name string
	Role Role
}

// Command is one inbound chat message addressed to the engine
type Command struct {
	Room   string
	UserID string
	Name   string
	Role   Role
	Text   string
}

// User returns the command's sender
func (c Command) User() User {
	name := c.Name
	if name == "" {
		name = c.UserID
	}
	return User{ID: c.UserID, Name: name, Role: c.Role}
}

// Participant is a user's entry in a session
type Participant struct {
	UserID   string
	Name     string
	Stake    int64
	State    ReservationState
	JoinedAt time.Time

	// comparison
	Category outcome.Category

	// elimination
	Active          bool
	Card            cards.Card
	HasCard         bool
	Disconnected    bool
	EliminatedRound int

	settled bool
	ctx     context.Context
	cancel  context.CancelFunc
}

// Message is an outbound chat message
type Message struct {
	Sender  string
	Content string
	Media   string
}

// Transport delivers engine output to chat rooms
type Transport interface {
	// Broadcast sends a message every member of the room can see
	Broadcast(ctx context.Context, room string, msg Message) error
	// Notify sends a message only the given user can see
	Notify(ctx context.Context, room, userID string, msg Message) error
}

// Recorder persists finished games. It is best effort: failures are logged
// and never affect settlement.
type Recorder interface {
	RecordGameResult(ctx context.Context, result GameResult) error
}

// StakeRecord is one participant's line in a GameResult
type StakeRecord struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Category string `json:"category,omitempty"`
	Stake    int64  `json:"stake"`
	Payout   int64  `json:"payout"`
	Result   string `json:"result"`
}

// GameResult is the persisted summary of a finished session
type GameResult struct {
	SessionID   string        `json:"session_id"`
	Room        string        `json:"room"`
	Variant     Variant       `json:"variant"`
	Outcome     string        `json:"outcome"`
	Stakes      []StakeRecord `json:"stakes"`
	TotalStakes int64         `json:"total_stakes"`
	TotalPayout int64         `json:"total_payout"`
	StartedAt   time.Time     `json:"started_at"`
	EndedAt     time.Time     `json:"ended_at"`
}

// SessionSummary is a read-only snapshot used by status and admin endpoints
type SessionSummary struct {
	ID           string               `json:"id"`
	Room         string               `json:"room"`
	Variant      Variant              `json:"variant"`
	Phase        Phase                `json:"phase"`
	Round        int                  `json:"round,omitempty"`
	Deadline     time.Time            `json:"deadline"`
	Stake        int64                `json:"stake,omitempty"`
	Initiator    string               `json:"initiator"`
	Participants []ParticipantSummary `json:"participants"`
}

// ParticipantSummary is a read-only view of a Participant
type ParticipantSummary struct {
	UserID   string `json:"user_id"`
	Name     string `json:"name"`
	Stake    int64  `json:"stake"`
	State    string `json:"state"`
	Category string `json:"category,omitempty"`
	Active   bool   `json:"active"`
}
