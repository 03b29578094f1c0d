package inventory

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// AuditStore provides append-only operations for audit event records.
type AuditStore struct {
	db *gorm.DB
}

// NewAuditStore creates a new AuditStore.
func NewAuditStore(db *gorm.DB) *AuditStore {
	return &AuditStore{db: db}
}

// AuditFilter narrows audit event listings. Empty fields match everything.
type AuditFilter struct {
	EventType string
	Actor     string
	EntityID  string
}

// Append creates a new immutable audit event record.
func (s *AuditStore) Append(ctx context.Context, event *AuditEvent) error {
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if err := s.db.WithContext(ctx).Create(event).Error; err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}

// Get returns one audit event. Returns nil, nil if it does not exist.
func (s *AuditStore) Get(ctx context.Context, id string) (*AuditEvent, error) {
	var event AuditEvent
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&event).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get audit event: %w", err)
	}
	return &event, nil
}

// List returns audit events ordered by created_at DESC (newest first).
// pageToken is an RFC3339 timestamp; events with created_at < pageToken are returned.
func (s *AuditStore) List(ctx context.Context, filter AuditFilter, pageSize int, pageToken string) ([]AuditEvent, string, int, error) {
	if pageSize <= 0 {
		pageSize = 20
	}
	if pageSize > 100 {
		pageSize = 100
	}

	scoped := func(q *gorm.DB) *gorm.DB {
		if filter.EventType != "" {
			q = q.Where("event_type = ?", filter.EventType)
		}
		if filter.Actor != "" {
			q = q.Where("actor = ?", filter.Actor)
		}
		if filter.EntityID != "" {
			q = q.Where("entity_id = ?", filter.EntityID)
		}
		return q
	}

	var totalSize int64
	if err := s.db.WithContext(ctx).Model(&AuditEvent{}).Scopes(scoped).Count(&totalSize).Error; err != nil {
		return nil, "", 0, fmt.Errorf("count audit events: %w", err)
	}

	query := s.db.WithContext(ctx).Scopes(scoped).Order("created_at DESC").Limit(pageSize + 1)
	if pageToken != "" {
		t, err := time.Parse(time.RFC3339Nano, pageToken)
		if err != nil {
			return nil, "", 0, fmt.Errorf("invalid page token: %w", err)
		}
		query = query.Where("created_at < ?", t)
	}

	var events []AuditEvent
	if err := query.Find(&events).Error; err != nil {
		return nil, "", 0, fmt.Errorf("list audit events: %w", err)
	}

	var nextToken string
	if len(events) > pageSize {
		nextToken = events[pageSize-1].CreatedAt.Format(time.RFC3339Nano)
		events = events[:pageSize]
	}
	return events, nextToken, int(totalSize), nil
}

// DeleteOlderThan deletes audit events created before the given cutoff time.
// Returns the number of deleted records.
func (s *AuditStore) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result := s.db.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&AuditEvent{})
	if result.Error != nil {
		return 0, fmt.Errorf("delete old audit events: %w", result.Error)
	}
	return result.RowsAffected, nil
}
