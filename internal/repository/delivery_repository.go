package repository

import (
	"database/sql"
	"time"

	"github.com/unclebandit/mailblast-backend/internal/model"
)

type DeliveryRepositoryInterface interface {
	// EnsurePending creates the delivery row for a task, or returns the
	// existing one when the queue redelivered. Idempotent on
	// (campaign_id, recipient).
	EnsurePending(campaignID, recipient string, role model.Role) (*model.Delivery, error)

	// MarkSent / MarkFailed move a pending delivery to its terminal state and
	// bump the matching campaign counter in the same transaction. They report
	// whether the transition happened, so a redelivered task that already
	// reached a terminal state increments nothing.
	MarkSent(id int, campaignID, messageID string) (bool, error)
	MarkFailed(id int, campaignID, reason string, retries int) (bool, error)

	ListFailed(campaignID string) ([]model.Delivery, error)
}

type DeliveryRepository struct {
	DB *sql.DB
}

func (r *DeliveryRepository) EnsurePending(campaignID, recipient string, role model.Role) (*model.Delivery, error) {
	existing, err := r.get(campaignID, recipient)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}

	query := `
        INSERT INTO deliveries (campaign_id, recipient, role, status, retry_count, created_at, updated_at)
        VALUES ($1, $2, $3, $4, 0, NOW(), NOW())
        ON CONFLICT (campaign_id, recipient) DO NOTHING
        RETURNING id, created_at, updated_at
    `
	var d model.Delivery
	err = r.DB.QueryRow(query, campaignID, recipient, string(role), model.DeliveryPending).
		Scan(&d.ID, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		// Lost the insert race to another worker; read theirs.
		return r.get(campaignID, recipient)
	}
	if err != nil {
		return nil, err
	}

	d.CampaignID = campaignID
	d.Recipient = recipient
	d.Role = role
	d.Status = model.DeliveryPending
	return &d, nil
}

func (r *DeliveryRepository) get(campaignID, recipient string) (*model.Delivery, error) {
	query := `
        SELECT id, campaign_id, recipient, role, status, message_id, last_error, retry_count, created_at, updated_at
        FROM deliveries
        WHERE campaign_id=$1 AND recipient=$2
    `
	var d model.Delivery
	var role string
	err := r.DB.QueryRow(query, campaignID, recipient).Scan(
		&d.ID, &d.CampaignID, &d.Recipient, &role, &d.Status,
		&d.MessageID, &d.LastError, &d.RetryCount, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	d.Role = model.Role(role)
	return &d, nil
}

func (r *DeliveryRepository) MarkSent(id int, campaignID, messageID string) (bool, error) {
	return r.finish(id, campaignID,
		`UPDATE deliveries SET status=$1, message_id=$2, updated_at=$3 WHERE id=$4 AND status=$5`,
		[]interface{}{model.DeliverySent, messageID, time.Now(), id, model.DeliveryPending},
		`UPDATE campaigns SET sent_count=sent_count+1, last_activity_at=NOW() WHERE id=$1`,
	)
}

func (r *DeliveryRepository) MarkFailed(id int, campaignID, reason string, retries int) (bool, error) {
	return r.finish(id, campaignID,
		`UPDATE deliveries SET status=$1, last_error=$2, retry_count=$3, updated_at=$4 WHERE id=$5 AND status=$6`,
		[]interface{}{model.DeliveryFailed, reason, retries, time.Now(), id, model.DeliveryPending},
		`UPDATE campaigns SET failed_count=failed_count+1, last_activity_at=NOW() WHERE id=$1`,
	)
}

// finish runs the delivery transition and the counter increment in one
// transaction. The increment only runs when the transition touched a row,
// which keeps sent_count+failed_count <= total_recipients under redelivery.
func (r *DeliveryRepository) finish(id int, campaignID, transition string, args []interface{}, increment string) (bool, error) {
	tx, err := r.DB.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	res, err := tx.Exec(transition, args...)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	if n == 0 {
		return false, tx.Commit()
	}

	if _, err := tx.Exec(increment, campaignID); err != nil {
		return false, err
	}
	return true, tx.Commit()
}

func (r *DeliveryRepository) ListFailed(campaignID string) ([]model.Delivery, error) {
	query := `
        SELECT id, campaign_id, recipient, role, status, message_id, last_error, retry_count, created_at, updated_at
        FROM deliveries
        WHERE campaign_id=$1 AND status=$2
        ORDER BY updated_at
    `
	rows, err := r.DB.Query(query, campaignID, model.DeliveryFailed)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	deliveries := []model.Delivery{}
	for rows.Next() {
		var d model.Delivery
		var role string
		if err := rows.Scan(
			&d.ID, &d.CampaignID, &d.Recipient, &role, &d.Status,
			&d.MessageID, &d.LastError, &d.RetryCount, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		d.Role = model.Role(role)
		deliveries = append(deliveries, d)
	}
	return deliveries, rows.Err()
}

var _ DeliveryRepositoryInterface = (*DeliveryRepository)(nil)
