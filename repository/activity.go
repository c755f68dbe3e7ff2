package repository

import (
	"context"
	"strings"
	"time"

	"github.com/goliatone/go-accounts"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// DefaultListLimit caps ListByEmail when no limit is given
const DefaultListLimit = 50

// ActivityModel is the Bun model for lifecycle activity.
type ActivityModel struct {
	bun.BaseModel `bun:"table:account_activity"`

	ID         uuid.UUID      `bun:"id,pk,type:uuid"`
	EventType  string         `bun:"event_type,notnull"`
	Email      string         `bun:"email,notnull"`
	FromState  string         `bun:"from_state"`
	ToState    string         `bun:"to_state"`
	Status     string         `bun:"status"`
	Metadata   map[string]any `bun:"metadata,type:jsonb"`
	OccurredAt time.Time      `bun:"occurred_at,notnull"`
}

// ActivityRepository stores lifecycle events using Bun.
type ActivityRepository struct {
	db *bun.DB
}

var _ accounts.ActivitySink = (*ActivityRepository)(nil)

// NewActivityRepository creates a new repository.
func NewActivityRepository(db *bun.DB) *ActivityRepository {
	return &ActivityRepository{db: db}
}

// CreateSchema creates the activity table and its email index
func (r *ActivityRepository) CreateSchema(ctx context.Context) error {
	if _, err := r.db.NewCreateTable().
		Model((*ActivityModel)(nil)).
		IfNotExists().
		Exec(ctx); err != nil {
		return err
	}

	_, err := r.db.NewCreateIndex().
		Model((*ActivityModel)(nil)).
		Index("idx_account_activity_email").
		IfNotExists().
		Column("email", "occurred_at").
		Exec(ctx)
	return err
}

// Record implements accounts.ActivitySink.
func (r *ActivityRepository) Record(ctx context.Context, event accounts.ActivityEvent) error {
	model := fromActivityEvent(event)
	_, err := r.db.NewInsert().
		Model(model).
		Exec(ctx)
	return err
}

// ListByEmail returns the most recent events for email, newest first
func (r *ActivityRepository) ListByEmail(ctx context.Context, email string, limit int) ([]accounts.ActivityEvent, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	var models []ActivityModel
	err := r.db.NewSelect().
		Model(&models).
		Where("email = ?", normalizeEmail(email)).
		Order("occurred_at DESC").
		Limit(limit).
		Scan(ctx)
	if err != nil {
		return nil, err
	}

	events := make([]accounts.ActivityEvent, len(models))
	for i, m := range models {
		events[i] = toActivityEvent(&m)
	}
	return events, nil
}

func fromActivityEvent(e accounts.ActivityEvent) *ActivityModel {
	occurredAt := e.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now()
	}

	metadata := map[string]any{}
	for k, v := range e.Metadata {
		metadata[k] = v
	}

	return &ActivityModel{
		ID:         uuid.New(),
		EventType:  string(e.EventType),
		Email:      normalizeEmail(e.Email),
		FromState:  string(e.FromState),
		ToState:    string(e.ToState),
		Status:     string(e.Status),
		Metadata:   metadata,
		OccurredAt: occurredAt.UTC(),
	}
}

func toActivityEvent(m *ActivityModel) accounts.ActivityEvent {
	return accounts.ActivityEvent{
		EventType:  accounts.ActivityEventType(m.EventType),
		Email:      m.Email,
		FromState:  accounts.AccountState(m.FromState),
		ToState:    accounts.AccountState(m.ToState),
		Status:     accounts.OutcomeStatus(m.Status),
		Metadata:   m.Metadata,
		OccurredAt: m.OccurredAt,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
