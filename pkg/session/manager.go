package session

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// URL paths appended to the server base URL when deriving session URLs.
const (
	editionPathPrefix = "editor-nice/"
	recordPath        = "camera-back"
	masterPath        = "master-camera"
)

// ManagerConfig configures a Manager.
type ManagerConfig struct {
	// ServerURL is the base URL the derived session URLs are built from.
	// A trailing slash is appended if missing.
	ServerURL string

	// Logger receives operational logging. Defaults to slog.Default().
	Logger *slog.Logger
}

// Manager owns the session lifecycle. It is the only writer of session
// state and enforces the single-live-session invariant.
//
// Construct exactly one Manager per process and inject it into every
// consumer. All mutating operations run under a single mutex, so the
// check-then-act sequences (live-session count before create, state guard
// before each transition) are atomic with respect to concurrent callers.
type Manager struct {
	mu sync.Mutex

	store     Store
	dirs      DirectoryService
	audio     AudioRecorder
	serverURL string
	log       *slog.Logger
}

// NewManager creates the lifecycle manager.
func NewManager(store Store, dirs DirectoryService, audio AudioRecorder, cfg ManagerConfig) *Manager {
	serverURL := cfg.ServerURL
	if !strings.HasSuffix(serverURL, "/") {
		serverURL += "/"
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Manager{
		store:     store,
		dirs:      dirs,
		audio:     audio,
		serverURL: serverURL,
		log:       log,
	}
}

// Create validates the input, allocates the session directory and persists
// a new CREATED session with its derived URLs. It fails with ErrValidation
// if another session is still live. The operation is all-or-nothing: if the
// insert fails after the directory was allocated, the directory is removed
// before the error is returned.
func (m *Manager) Create(ctx context.Context, req NewSession) (string, error) {
	m.log.Info("creating session", "band", req.Band, "concert", req.Concert)
	if err := validateNewSession(req); err != nil {
		return "", err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	live, err := m.store.CountByStates(ctx, LiveStates...)
	if err != nil {
		return "", fmt.Errorf("%w: counting live sessions: %w", ErrCollaborator, err)
	}
	if live > 0 {
		return "", fmt.Errorf("%w: another session is already live", ErrValidation)
	}

	dir, err := m.dirs.CreateSessionDirectory(req.Band)
	if err != nil {
		return "", fmt.Errorf("%w: creating session directory: %w", ErrCollaborator, err)
	}

	id := uuid.NewString()
	sess := &Session{
		ID:         id,
		Concert:    req.Concert,
		Band:       req.Band,
		Date:       req.Date,
		Location:   req.Location,
		IsPublic:   req.IsPublic,
		FolderURL:  dir,
		EditionURL: m.serverURL + editionPathPrefix + id,
		RecordURL:  m.serverURL + recordPath,
		MasterURL:  m.serverURL + masterPath,
		State:      StateCreated,
	}

	if err := m.store.Insert(ctx, sess); err != nil {
		m.log.Error("storing session failed, rolling back directory", "session_id", id, "error", err)
		if rbErr := m.dirs.DeleteSessionDirectory(req.Band); rbErr != nil {
			m.log.Error("directory rollback failed", "band", req.Band, "error", rbErr)
		}
		return "", fmt.Errorf("%w: storing session: %w", ErrCollaborator, err)
	}

	m.log.Info("session created", "session_id", id, "band", req.Band)
	return id, nil
}

// Initialize transitions a CREATED session to ACTIVE, starting audio
// recording against the session's directory. If the state update fails
// after recording started, the recording is stopped before the error is
// returned so no capture process outlives an uncommitted transition.
func (m *Manager) Initialize(ctx context.Context, id string) error {
	m.log.Info("initializing session", "session_id", id)
	if err := validateID(id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.find(ctx, id)
	if err != nil {
		return err
	}
	if sess.State != StateCreated {
		return fmt.Errorf("%w: session %s is %s, can only initialize a CREATED session", ErrIllegalState, id, sess.State)
	}

	startedAt, err := m.audio.Start(ctx, sess.FolderURL)
	if err != nil {
		return fmt.Errorf("%w: starting audio recording: %w", ErrCollaborator, err)
	}

	fields := Fields{
		FieldState:          StateActive,
		FieldAudioTimestamp: startedAt,
	}
	if err := m.store.UpdateFields(ctx, id, fields); err != nil {
		m.log.Error("state update failed, stopping recording", "session_id", id, "error", err)
		if stopErr := m.audio.Stop(); stopErr != nil {
			m.log.Error("audio stop during rollback failed", "session_id", id, "error", stopErr)
		}
		return fmt.Errorf("%w: updating session state: %w", ErrCollaborator, err)
	}

	m.log.Info("session active", "session_id", id, "audio_timestamp", startedAt)
	return nil
}

// Stop transitions a CREATED or ACTIVE session to FINISHED. Audio recording
// is stopped only when the session was ACTIVE; a CREATED session has no
// running capture.
func (m *Manager) Stop(ctx context.Context, id string) error {
	m.log.Info("stopping session", "session_id", id)
	if err := validateID(id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.find(ctx, id)
	if err != nil {
		return err
	}
	if sess.State != StateCreated && sess.State != StateActive {
		return fmt.Errorf("%w: session %s is %s, only live sessions can be stopped", ErrIllegalState, id, sess.State)
	}

	if sess.State == StateActive {
		if err := m.audio.Stop(); err != nil {
			return fmt.Errorf("%w: stopping audio recording: %w", ErrCollaborator, err)
		}
	}

	if err := m.store.UpdateFields(ctx, id, Fields{FieldState: StateFinished}); err != nil {
		return fmt.Errorf("%w: updating session state: %w", ErrCollaborator, err)
	}

	m.log.Info("session finished", "session_id", id)
	return nil
}

// Delete removes a non-ACTIVE session and its storage directory. The
// directory is deleted before the record: if the record removal then fails,
// the directory is already gone. That asymmetry is deliberate; the record
// remains visible and the failure is reported to the caller.
func (m *Manager) Delete(ctx context.Context, id string) error {
	m.log.Info("deleting session", "session_id", id)
	if err := validateID(id); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	sess, err := m.find(ctx, id)
	if err != nil {
		return err
	}
	if sess.State == StateActive {
		return fmt.Errorf("%w: session %s is active, stop it before deleting", ErrIllegalState, id)
	}

	if err := m.dirs.DeleteSessionDirectory(sess.Band); err != nil {
		return fmt.Errorf("%w: deleting session directory: %w", ErrCollaborator, err)
	}
	if err := m.store.Delete(ctx, id); err != nil {
		return fmt.Errorf("%w: deleting session record: %w", ErrCollaborator, err)
	}

	m.log.Info("session deleted", "session_id", id)
	return nil
}

// Get returns the external view of a session.
func (m *Manager) Get(ctx context.Context, id string) (*View, error) {
	if err := validateID(id); err != nil {
		return nil, err
	}
	sess, err := m.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return sess.View(), nil
}

// Current returns the unique live session, or nil when no session is live.
func (m *Manager) Current(ctx context.Context) (*View, error) {
	sessions, err := m.store.FindByStates(ctx, LiveStates...)
	if err != nil {
		return nil, fmt.Errorf("%w: finding live session: %w", ErrCollaborator, err)
	}
	if len(sessions) == 0 {
		return nil, nil
	}
	return sessions[0].View(), nil
}

// List returns the external views of all sessions, in store order.
func (m *Manager) List(ctx context.Context) ([]*View, error) {
	sessions, err := m.store.FindByStates(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: listing sessions: %w", ErrCollaborator, err)
	}
	views := make([]*View, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, sess.View())
	}
	return views, nil
}

// SetLogo stores a logo image for the session, keyed by its band.
func (m *Manager) SetLogo(ctx context.Context, id string, logo io.Reader, filename string) error {
	m.log.Info("setting session logo", "session_id", id, "filename", filename)
	if err := validateID(id); err != nil {
		return err
	}
	if err := validateImageFilename(filename); err != nil {
		return err
	}
	sess, err := m.find(ctx, id)
	if err != nil {
		return err
	}
	if err := m.dirs.SaveLogo(sess.Band, logo, filename); err != nil {
		return fmt.Errorf("%w: saving session logo: %w", ErrCollaborator, err)
	}
	return nil
}

// LogoURL returns the location of the session's stored logo.
func (m *Manager) LogoURL(ctx context.Context, id string) (string, error) {
	if err := validateID(id); err != nil {
		return "", err
	}
	sess, err := m.find(ctx, id)
	if err != nil {
		return "", err
	}
	url, err := m.dirs.LogoURL(sess.Band)
	if err != nil {
		return "", fmt.Errorf("%w: session %s has no stored logo", ErrValidation, id)
	}
	return url, nil
}

// find loads a session or reports ErrNotFound / ErrCollaborator.
func (m *Manager) find(ctx context.Context, id string) (*Session, error) {
	sess, err := m.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("%w: finding session: %w", ErrCollaborator, err)
	}
	if sess == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return sess, nil
}
