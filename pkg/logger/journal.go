package logger

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/boardproject/boardadmin/pkg/utils"
)

// JournalFile is the file name of the session journal inside the log directory
const JournalFile = "session.json"

// SessionLog records one admin session from login to logout
type SessionLog struct {
	MemberEmail   string     `json:"member_email"`
	LoggedInAt    time.Time  `json:"logged_in_at"`
	RefreshCount  int        `json:"refresh_count"`
	LastRefreshAt *time.Time `json:"last_refresh_at,omitempty"`
	LoggedOutAt   *time.Time `json:"logged_out_at,omitempty"`
	LogoutReason  string     `json:"logout_reason,omitempty"`
}

// Journal persists the current SessionLog under a log directory
type Journal struct {
	logDir string
	mu     sync.Mutex
	now    func() time.Time
}

func NewJournal(logDir string) *Journal {
	if err := utils.EnsureDir(logDir, 0700); err != nil {
		slog.Warn("[JOURNAL] failed to create log directory", "dir", logDir, "error", err)
	}
	return &Journal{
		logDir: logDir,
		now:    time.Now,
	}
}

// Path returns the journal file path
func (j *Journal) Path() string {
	return filepath.Join(j.logDir, JournalFile)
}

// LogLogin starts a new session record, replacing any previous one
func (j *Journal) LogLogin(email string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	return j.write(SessionLog{
		MemberEmail: email,
		LoggedInAt:  j.now(),
	})
}

// LogRefresh bumps the refresh counter of the current session
func (j *Journal) LogRefresh() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	sessionLog, err := j.read()
	if err != nil {
		// no login was journaled; start an anonymous record
		sessionLog = SessionLog{LoggedInAt: j.now()}
	}
	now := j.now()
	sessionLog.RefreshCount++
	sessionLog.LastRefreshAt = &now
	return j.write(sessionLog)
}

// LogLogout closes the current session with a reason such as "user" or "session expired"
func (j *Journal) LogLogout(reason string) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now()
	sessionLog, err := j.read()
	if err != nil {
		sessionLog = SessionLog{LoggedInAt: now}
	}
	sessionLog.LoggedOutAt = &now
	sessionLog.LogoutReason = reason
	return j.write(sessionLog)
}

// Current returns the journaled session, or nil when nothing was recorded
func (j *Journal) Current() (*SessionLog, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	sessionLog, err := j.read()
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &sessionLog, nil
}

func (j *Journal) read() (SessionLog, error) {
	var sessionLog SessionLog
	err := utils.ReadJSONFile(j.Path(), &sessionLog)
	return sessionLog, err
}

func (j *Journal) write(sessionLog SessionLog) error {
	if err := utils.WriteJSONFile(j.Path(), sessionLog, 0600); err != nil {
		return fmt.Errorf("failed to write session log: %w", err)
	}
	slog.Debug("[JOURNAL] session log written", "path", j.Path())
	return nil
}
