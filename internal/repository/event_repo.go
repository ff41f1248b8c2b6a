package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/onboarding-gateway/backend/internal/event"
	"github.com/onboarding-gateway/backend/internal/model"
)

// EventRepository records webhook deliveries for audit purposes.
type EventRepository struct {
	db *sql.DB
}

// NewEventRepository creates a new EventRepository.
func NewEventRepository(db *sql.DB) *EventRepository {
	return &EventRepository{db: db}
}

// Record persists one audit entry for a decoded webhook event.
func (r *EventRepository) Record(ctx context.Context, res *event.Result) (*model.WebhookEvent, error) {
	ev := &model.WebhookEvent{
		ID:           uuid.NewString(),
		Trigger:      res.Trigger,
		OnboardingID: res.OnboardingID,
		Success:      res.Success,
		Dispatched:   res.Prompt != nil,
		ReceivedAt:   time.Now().UTC(),
	}
	if res.Prompt != nil {
		id := res.Prompt.SessionID
		ev.SessionID = &id
	}

	query := `
		INSERT INTO webhook_events (id, trigger_type, onboarding_id, success, session_id, dispatched, received_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	var sessionID sql.NullInt64
	if ev.SessionID != nil {
		sessionID = sql.NullInt64{Int64: int64(*ev.SessionID), Valid: true}
	}

	_, err := r.db.ExecContext(ctx, query,
		ev.ID,
		ev.Trigger,
		ev.OnboardingID,
		ev.Success,
		sessionID,
		ev.Dispatched,
		ev.ReceivedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to record webhook event: %w", err)
	}

	return ev, nil
}

// Recent returns the most recently received events, newest first.
func (r *EventRepository) Recent(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	query := `
		SELECT id, trigger_type, onboarding_id, success, session_id, dispatched, received_at
		FROM webhook_events
		ORDER BY received_at DESC
		LIMIT ?
	`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query webhook events: %w", err)
	}
	defer rows.Close()

	var events []*model.WebhookEvent
	for rows.Next() {
		ev := &model.WebhookEvent{}
		var sessionID sql.NullInt64
		if err := rows.Scan(
			&ev.ID,
			&ev.Trigger,
			&ev.OnboardingID,
			&ev.Success,
			&sessionID,
			&ev.Dispatched,
			&ev.ReceivedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan webhook event: %w", err)
		}
		if sessionID.Valid {
			id := uint16(sessionID.Int64)
			ev.SessionID = &id
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate webhook events: %w", err)
	}

	return events, nil
}

// CountByTrigger returns the number of recorded events for one trigger.
func (r *EventRepository) CountByTrigger(ctx context.Context, trigger string) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM webhook_events WHERE trigger_type = ?`, trigger,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count webhook events: %w", err)
	}
	return count, nil
}
