package notification

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DeliveryRecorder persists delivery attempts made by the local facility.
type DeliveryRecorder interface {
	Record(ctx context.Context, d *Delivery) error
}

// Repository handles database operations for the delivery log.
type Repository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Record inserts a delivery attempt, assigning its id and creation time.
func (r *Repository) Record(ctx context.Context, d *Delivery) error {
	d.ID = uuid.New().String()
	d.CreatedAt = time.Now().UTC()

	query := `
		INSERT INTO reminder_deliveries (id, notification_id, category, channel, title, body, status, error, fired_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		d.ID, d.NotificationID, d.Category, d.Channel, d.Title, d.Body, d.Status, d.Error, d.FiredAt, d.CreatedAt,
	)
	return err
}

// GetByID retrieves a delivery by its id. A missing row yields nil, nil.
func (r *Repository) GetByID(ctx context.Context, id string) (*Delivery, error) {
	query := `
		SELECT id, notification_id, category, channel, title, body, status, error, fired_at, created_at
		FROM reminder_deliveries WHERE id = $1
	`
	var d Delivery
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&d.ID, &d.NotificationID, &d.Category, &d.Channel, &d.Title, &d.Body, &d.Status, &d.Error, &d.FiredAt, &d.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// Recent lists the latest deliveries, newest first.
func (r *Repository) Recent(ctx context.Context, limit int) ([]*Delivery, error) {
	if limit <= 0 {
		limit = 50
	}
	query := `
		SELECT id, notification_id, category, channel, title, body, status, error, fired_at, created_at
		FROM reminder_deliveries ORDER BY fired_at DESC LIMIT $1
	`
	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deliveries []*Delivery
	for rows.Next() {
		var d Delivery
		if err := rows.Scan(&d.ID, &d.NotificationID, &d.Category, &d.Channel, &d.Title, &d.Body, &d.Status, &d.Error, &d.FiredAt, &d.CreatedAt); err != nil {
			return nil, err
		}
		deliveries = append(deliveries, &d)
	}
	return deliveries, rows.Err()
}
