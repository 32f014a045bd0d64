// Package statestore persists the active Session in a runtime-scoped
// directory so independently spawned invocations share one source of
// truth. All mutation happens inside WithLock critical sections.
package statestore

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"voxctl/internal/domain"
)

const (
	sessionFile = "session.json"
	backendFile = "tts-backend"
	textFile    = "tts-text"
	lockFile    = "lock"

	dirPerm  = 0o700
	filePerm = 0o600
)

var (
	// ErrNotFound means no session record exists; callers treat this
	// as implicit Idle.
	ErrNotFound = errors.New("no session record")
)

// Store owns the session record, the TTS backend marker and the lock
// file inside one state directory.
type Store struct {
	dir string
}

// DefaultDir resolves the runtime-scoped state directory. The contents
// are ephemeral; the directory being wiped at any time must only ever
// reset the system to implicit Idle.
func DefaultDir() string {
	if dir := strings.TrimSpace(os.Getenv("XDG_RUNTIME_DIR")); dir != "" {
		return filepath.Join(dir, "voxctl")
	}
	if uid := os.Getuid(); uid >= 0 {
		candidate := filepath.Join("/run/user", strconv.Itoa(uid))
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return filepath.Join(candidate, "voxctl")
		}
	}
	return filepath.Join(os.TempDir(), fmt.Sprintf("voxctl-%d", os.Getuid()))
}

// New creates a Store rooted at dir, creating it owner-only.
func New(dir string) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		dir = DefaultDir()
	}
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return nil, fmt.Errorf("failed to create state directory %q: %w", dir, err)
	}
	return &Store{dir: dir}, nil
}

// Dir returns the state directory path.
func (s *Store) Dir() string {
	return s.dir
}

func (s *Store) sessionPath() string {
	return filepath.Join(s.dir, sessionFile)
}

// Load reads the current session. It returns ErrNotFound when no record
// exists and domain.ErrCorruptState when the record cannot be parsed;
// callers treat corruption as a stale session and reap it.
func (s *Store) Load() (domain.Session, error) {
	raw, err := os.ReadFile(s.sessionPath())
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.Session{}, ErrNotFound
		}
		return domain.Session{}, fmt.Errorf("failed to read session record: %w", err)
	}

	var session domain.Session
	if err := json.Unmarshal(raw, &session); err != nil {
		return domain.Session{}, fmt.Errorf("%w: %v", domain.ErrCorruptState, err)
	}
	if session.Mode == "" {
		return domain.Session{}, fmt.Errorf("%w: missing mode", domain.ErrCorruptState)
	}
	return session, nil
}

// Save writes the session atomically (temp file then rename) so a
// concurrent reader never observes a partial record.
func (s *Store) Save(session domain.Session) error {
	raw, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}

	tmp, err := os.CreateTemp(s.dir, sessionFile+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp session file: %w", err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(raw); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to write session record: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to sync session record: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to close session record: %w", err)
	}
	if err := os.Chmod(tmpPath, filePerm); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to set session record mode: %w", err)
	}
	if err := os.Rename(tmpPath, s.sessionPath()); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("failed to publish session record: %w", err)
	}
	return nil
}

// Clear removes the session record, returning the system to implicit
// Idle. Clearing an absent record is not an error.
func (s *Store) Clear() error {
	if err := os.Remove(s.sessionPath()); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to clear session record: %w", err)
	}
	return nil
}

// Backend reads the persisted TTS backend. It survives Idle so a toggle
// with no active session still sticks for the next speak cycle.
func (s *Store) Backend() domain.Backend {
	raw, err := os.ReadFile(filepath.Join(s.dir, backendFile))
	if err != nil {
		return domain.BackendLocal
	}
	if domain.Backend(strings.TrimSpace(string(raw))) == domain.BackendRemote {
		return domain.BackendRemote
	}
	return domain.BackendLocal
}

// SetBackend persists the TTS backend selection.
func (s *Store) SetBackend(backend domain.Backend) error {
	path := filepath.Join(s.dir, backendFile)
	if err := os.WriteFile(path, []byte(backend+"\n"), filePerm); err != nil {
		return fmt.Errorf("failed to persist backend selection: %w", err)
	}
	return nil
}

// WriteText persists the current TTS text and returns its path. The
// player re-reads it on every restart so paragraph navigation works
// across invocations.
func (s *Store) WriteText(text string) (string, error) {
	path := filepath.Join(s.dir, textFile)
	if err := os.WriteFile(path, []byte(text), filePerm); err != nil {
		return "", fmt.Errorf("failed to persist speech text: %w", err)
	}
	return path, nil
}
