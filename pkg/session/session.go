// Package session implements the recording session lifecycle. It defines the
// Session record, the Store interface for session persistence, the collaborator
// interfaces for directory allocation and audio capture, and the Manager that
// owns every state transition.
package session

import (
	"context"
	"fmt"
	"io"
	"time"
)

// State is the lifecycle state of a session. Transitions are strictly
// CREATED -> ACTIVE -> FINISHED; FINISHED is terminal.
type State string

const (
	// StateCreated means the session record and its directory exist but
	// recording has not started.
	StateCreated State = "CREATED"

	// StateActive means audio recording is running.
	StateActive State = "ACTIVE"

	// StateFinished is the terminal state. No further transitions happen.
	StateFinished State = "FINISHED"
)

// LiveStates are the non-terminal states. At most one session may be in a
// live state at any time.
var LiveStates = []State{StateCreated, StateActive}

// ParseState converts a raw value into a State, rejecting anything outside
// the closed set.
func ParseState(raw string) (State, error) {
	switch s := State(raw); s {
	case StateCreated, StateActive, StateFinished:
		return s, nil
	default:
		return "", fmt.Errorf("unknown session state %q", raw)
	}
}

// Session is the persisted record for one recorded event.
type Session struct {
	// ID is the unique session identifier, assigned at creation.
	ID string

	// Concert and Band describe the event. Immutable after creation.
	Concert string
	Band    string

	// Date is the event timestamp.
	Date time.Time

	// Location describes where the event takes place.
	Location string

	// IsPublic marks the session as publicly visible.
	IsPublic bool

	// FolderURL is the storage directory allocated for this session.
	// Internal only: it is never part of an external view.
	FolderURL string

	// EditionURL, RecordURL and MasterURL are derived from the server base
	// URL at creation time and never change afterwards.
	EditionURL string
	RecordURL  string
	MasterURL  string

	// State is mutated only by the Manager.
	State State

	// AudioTimestamp is set when the session becomes ACTIVE and is nil for
	// sessions that never started recording.
	AudioTimestamp *time.Time
}

// View is the external projection of a Session. It deliberately has no
// folder field, so the storage location cannot leak through any read path.
type View struct {
	ID             string     `json:"id"`
	Concert        string     `json:"concert"`
	Band           string     `json:"band"`
	Date           time.Time  `json:"date"`
	Location       string     `json:"location"`
	IsPublic       bool       `json:"is_public"`
	EditionURL     string     `json:"edition_url,omitempty"`
	RecordURL      string     `json:"record_url,omitempty"`
	MasterURL      string     `json:"master_url,omitempty"`
	State          State      `json:"state"`
	AudioTimestamp *time.Time `json:"audio_timestamp,omitempty"`
}

// View returns the external projection of the session.
func (s *Session) View() *View {
	return &View{
		ID:             s.ID,
		Concert:        s.Concert,
		Band:           s.Band,
		Date:           s.Date,
		Location:       s.Location,
		IsPublic:       s.IsPublic,
		EditionURL:     s.EditionURL,
		RecordURL:      s.RecordURL,
		MasterURL:      s.MasterURL,
		State:          s.State,
		AudioTimestamp: s.AudioTimestamp,
	}
}

// Field names accepted by Store.UpdateFields.
const (
	FieldState          = "state"
	FieldAudioTimestamp = "audio_timestamp"
)

// Fields is a set of field-level updates keyed by field name.
type Fields map[string]any

// Store defines the interface for session persistence. The store is durable
// storage only; lifecycle invariants are enforced by the Manager.
type Store interface {
	// Insert persists a new session record.
	Insert(ctx context.Context, s *Session) error

	// FindByID retrieves a session by ID. Returns nil, nil if not found.
	FindByID(ctx context.Context, id string) (*Session, error)

	// FindByStates returns all sessions whose state is in the given set.
	// An empty set matches every session.
	FindByStates(ctx context.Context, states ...State) ([]*Session, error)

	// CountByStates counts sessions whose state is in the given set.
	CountByStates(ctx context.Context, states ...State) (int, error)

	// UpdateFields applies a field-level update to the session.
	UpdateFields(ctx context.Context, id string, fields Fields) error

	// Delete removes the session record.
	Delete(ctx context.Context, id string) error
}

// DirectoryService allocates and removes the per-session storage area and
// stores the session logo. Keys are band names; directory removal is
// idempotent.
type DirectoryService interface {
	CreateSessionDirectory(band string) (string, error)
	DeleteSessionDirectory(band string) error
	SaveLogo(band string, logo io.Reader, filename string) error
	LogoURL(band string) (string, error)
}

// AudioRecorder starts and stops the audio capture process. The Manager
// never issues a second Start without an intervening Stop.
type AudioRecorder interface {
	// Start begins recording into the given directory and returns the
	// capture start time.
	Start(ctx context.Context, dir string) (time.Time, error)

	// Stop terminates the running recording.
	Stop() error
}
