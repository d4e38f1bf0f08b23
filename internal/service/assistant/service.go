package assistant

import (
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Service persists agents, conversations, messages and documents.
type Service struct {
	db  *sql.DB
	now func() time.Time
}

// NewService builds a new assistant service.
func NewService(db *sql.DB) *Service {
	return &Service{db: db, now: time.Now}
}

// WithClock replaces the time source used for created/updated timestamps.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// timestamp is UTC with microsecond precision so sqlite and mysql DATETIME(6) agree.
func (s *Service) timestamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func newID() string {
	return uuid.NewString()
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
