package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ErrNotFound is returned when a submission lookup matches no row.
var ErrNotFound = errors.New("not found")

// DefaultListLimit caps admin listings when the caller passes no limit.
const DefaultListLimit = 500

// Store wraps the gorm handle with the queries the application needs.
type Store struct {
	db *gorm.DB
}

// NewStore returns a Store backed by db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// CreateSubmission inserts sub, assigning a new uuid when ID is empty.
func (s *Store) CreateSubmission(ctx context.Context, sub *Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(sub).Error; err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// IntegrationMarks lists which follow-up integrations succeeded for a
// submission. Only the true flags are written.
type IntegrationMarks struct {
	EmailSent     bool
	OwnerNotified bool
	CRMSynced     bool
	At            time.Time
}

func (m IntegrationMarks) columns() map[string]any {
	cols := map[string]any{}
	if m.EmailSent {
		cols["email_sent_at"] = m.At
	}
	if m.OwnerNotified {
		cols["owner_notified_at"] = m.At
	}
	if m.CRMSynced {
		cols["crm_synced_at"] = m.At
	}
	return cols
}

// MarkIntegrations stamps the successful integrations and, when key is
// non-empty, the archive key of the stored report.
func (s *Store) MarkIntegrations(ctx context.Context, id string, m IntegrationMarks, reportKey string) error {
	cols := m.columns()
	if reportKey != "" {
		cols["report_key"] = reportKey
	}
	if len(cols) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Model(&Submission{}).Where("id = ?", id).Updates(cols)
	if res.Error != nil {
		return fmt.Errorf("mark integrations: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListSubmissions returns submissions newest first without the rendered
// report body.
func (s *Store) ListSubmissions(ctx context.Context, limit int) ([]Submission, error) {
	if limit <= 0 || limit > DefaultListLimit {
		limit = DefaultListLimit
	}
	var rows []Submission
	err := s.db.WithContext(ctx).
		Omit("full_report_html").
		Order("created_at DESC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return rows, nil
}

// GetSubmission loads one submission including its full report.
func (s *Store) GetSubmission(ctx context.Context, id string) (*Submission, error) {
	var sub Submission
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&sub).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get submission: %w", err)
	}
	return &sub, nil
}

// CreateSession records an issued admin token.
func (s *Store) CreateSession(ctx context.Context, id string, expiresAt time.Time) error {
	sess := &AdminSession{ID: id, ExpiresAt: expiresAt}
	if err := s.db.WithContext(ctx).Create(sess).Error; err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// SessionActive reports whether the session exists and has not expired at
// now. An expired row is deleted on the way out.
func (s *Store) SessionActive(ctx context.Context, id string, now time.Time) (bool, error) {
	var sess AdminSession
	err := s.db.WithContext(ctx).Where("id = ?", id).Limit(1).Find(&sess).Error
	if err != nil {
		return false, fmt.Errorf("load session: %w", err)
	}
	if sess.ID == "" {
		return false, nil
	}
	if !sess.ExpiresAt.After(now) {
		if err := s.DeleteSession(ctx, id); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

// DeleteSession removes a session; deleting an unknown id is not an error.
func (s *Store) DeleteSession(ctx context.Context, id string) error {
	if err := s.db.WithContext(ctx).Where("id = ?", id).Delete(&AdminSession{}).Error; err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// DeleteExpiredSessions removes every session that expired at or before now
// and returns how many were removed.
func (s *Store) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	res := s.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&AdminSession{})
	if res.Error != nil {
		return 0, fmt.Errorf("delete expired sessions: %w", res.Error)
	}
	return res.RowsAffected, nil
}
