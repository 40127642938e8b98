package repository

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
	"github.com/unclebandit/mailblast-backend/internal/model"
)

type CampaignRepositoryInterface interface {
	Create(c *model.Campaign) error
	GetByID(id string) (*model.Campaign, error)
	UpdateStatus(id, status string) error
	SetQueuedCount(id string, queued int) error
	ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error)
	ListActive() ([]*model.Campaign, error)

	// Counter updates are single atomic increments so concurrent workers
	// never lose one; completion is a conditional transition on the counters.
	IncrementSent(id string) error
	IncrementFailed(id string) error
	MarkCompletedIfDone(id string) (bool, error)
}

type CampaignRepository struct {
	DB *sql.DB
}

const campaignColumns = `id, name, subject, body, from_address, status,
	total_recipients, sent_count, failed_count, queued_count,
	cc_list, bcc_list, attachments, created_at, last_activity_at`

func (r *CampaignRepository) Create(c *model.Campaign) error {
	now := time.Now()
	c.CreatedAt = now
	c.LastActivityAt = now
	if c.Status == "" {
		c.Status = model.StatusQueued
	}

	attachments, err := json.Marshal(c.Attachments)
	if err != nil {
		return fmt.Errorf("marshal attachments: %w", err)
	}

	query := `
        INSERT INTO campaigns
            (id, name, subject, body, from_address, status, total_recipients,
             sent_count, failed_count, queued_count, cc_list, bcc_list,
             attachments, created_at, last_activity_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, 0, 0, 0, $8, $9, $10, $11, $11)
    `
	_, err = r.DB.Exec(query,
		c.ID, c.Name, c.Subject, c.Body, c.FromAddress, c.Status,
		c.TotalRecipients, pq.Array(c.CCList), pq.Array(c.BCCList),
		attachments, now,
	)
	return err
}

func (r *CampaignRepository) GetByID(id string) (*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE id=$1`

	var c model.Campaign
	var attachments []byte
	err := r.DB.QueryRow(query, id).Scan(
		&c.ID, &c.Name, &c.Subject, &c.Body, &c.FromAddress, &c.Status,
		&c.TotalRecipients, &c.SentCount, &c.FailedCount, &c.QueuedCount,
		pq.Array(&c.CCList), pq.Array(&c.BCCList), &attachments,
		&c.CreatedAt, &c.LastActivityAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, appErrors.NewCampaignNotFound(id)
		}
		return nil, err
	}
	if len(attachments) > 0 {
		if err := json.Unmarshal(attachments, &c.Attachments); err != nil {
			return nil, fmt.Errorf("unmarshal attachments: %w", err)
		}
	}
	return &c, nil
}

func (r *CampaignRepository) UpdateStatus(id, status string) error {
	query := `UPDATE campaigns SET status=$1, last_activity_at=$2 WHERE id=$3`
	_, err := r.DB.Exec(query, status, time.Now(), id)
	return err
}

func (r *CampaignRepository) SetQueuedCount(id string, queued int) error {
	query := `UPDATE campaigns SET queued_count=$1 WHERE id=$2`
	_, err := r.DB.Exec(query, queued, id)
	return err
}

func (r *CampaignRepository) IncrementSent(id string) error {
	query := `UPDATE campaigns SET sent_count=sent_count+1, last_activity_at=NOW() WHERE id=$1`
	_, err := r.DB.Exec(query, id)
	return err
}

func (r *CampaignRepository) IncrementFailed(id string) error {
	query := `UPDATE campaigns SET failed_count=failed_count+1, last_activity_at=NOW() WHERE id=$1`
	_, err := r.DB.Exec(query, id)
	return err
}

// MarkCompletedIfDone flips a sending campaign to completed once every
// recipient is accounted for. The condition runs in the database so racing
// workers cannot double-transition.
func (r *CampaignRepository) MarkCompletedIfDone(id string) (bool, error) {
	query := `
        UPDATE campaigns
        SET status=$1, last_activity_at=NOW()
        WHERE id=$2 AND status=$3 AND sent_count+failed_count >= total_recipients
    `
	res, err := r.DB.Exec(query, model.StatusCompleted, id, model.StatusSending)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

func (r *CampaignRepository) ListCampaigns(offset, limit int, status string) ([]*model.Campaign, int, error) {
	campaigns := []*model.Campaign{}
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE 1=1`
	args := []interface{}{}
	argPos := 1

	if status != "" {
		query += fmt.Sprintf(" AND status=$%d", argPos)
		args = append(args, status)
		argPos++
	}

	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, limit, offset)

	rows, err := r.DB.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	for rows.Next() {
		c := &model.Campaign{}
		var attachments []byte
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Subject, &c.Body, &c.FromAddress, &c.Status,
			&c.TotalRecipients, &c.SentCount, &c.FailedCount, &c.QueuedCount,
			pq.Array(&c.CCList), pq.Array(&c.BCCList), &attachments,
			&c.CreatedAt, &c.LastActivityAt,
		); err != nil {
			return nil, 0, err
		}
		if len(attachments) > 0 {
			if err := json.Unmarshal(attachments, &c.Attachments); err != nil {
				return nil, 0, err
			}
		}
		campaigns = append(campaigns, c)
	}

	countQuery := `SELECT COUNT(*) FROM campaigns WHERE 1=1`
	argsCount := []interface{}{}
	if status != "" {
		countQuery += " AND status=$1"
		argsCount = append(argsCount, status)
	}

	var total int
	if err := r.DB.QueryRow(countQuery, argsCount...).Scan(&total); err != nil {
		return nil, 0, err
	}

	return campaigns, total, nil
}

// ListActive returns campaigns the monitor should inspect.
func (r *CampaignRepository) ListActive() ([]*model.Campaign, error) {
	query := `SELECT ` + campaignColumns + ` FROM campaigns WHERE status IN ($1, $2)`
	rows, err := r.DB.Query(query, model.StatusQueued, model.StatusSending)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	campaigns := []*model.Campaign{}
	for rows.Next() {
		c := &model.Campaign{}
		var attachments []byte
		if err := rows.Scan(
			&c.ID, &c.Name, &c.Subject, &c.Body, &c.FromAddress, &c.Status,
			&c.TotalRecipients, &c.SentCount, &c.FailedCount, &c.QueuedCount,
			pq.Array(&c.CCList), pq.Array(&c.BCCList), &attachments,
			&c.CreatedAt, &c.LastActivityAt,
		); err != nil {
			return nil, err
		}
		campaigns = append(campaigns, c)
	}
	return campaigns, rows.Err()
}

var _ CampaignRepositoryInterface = (*CampaignRepository)(nil)
