package repository

import (
	"database/sql"
	"encoding/json"

	"github.com/unclebandit/mailblast-backend/internal/model"
)

// ContactRepositoryInterface defines methods used by the dispatcher and worker
type ContactRepositoryInterface interface {
	GetByEmail(email string) (*model.Contact, error)
	ListAll() ([]model.Contact, error)
}

// ContactRepository is the concrete implementation
type ContactRepository struct {
	DB *sql.DB
}

// GetByEmail fetches a contact by its normalized address
func (r *ContactRepository) GetByEmail(email string) (*model.Contact, error) {
	query := `SELECT email, fields FROM contacts WHERE email = $1`
	row := r.DB.QueryRow(query, email)

	var c model.Contact
	var fields []byte
	if err := row.Scan(&c.Email, &fields); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil // not found
		}
		return nil, err
	}
	if len(fields) > 0 {
		if err := json.Unmarshal(fields, &c.Fields); err != nil {
			return nil, err
		}
	}
	return &c, nil
}

// ListAll fetches every contact, used when a campaign targets the whole list
func (r *ContactRepository) ListAll() ([]model.Contact, error) {
	query := `SELECT email, fields FROM contacts`
	rows, err := r.DB.Query(query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	contacts := []model.Contact{}
	for rows.Next() {
		var c model.Contact
		var fields []byte
		if err := rows.Scan(&c.Email, &fields); err != nil {
			return nil, err
		}
		if len(fields) > 0 {
			if err := json.Unmarshal(fields, &c.Fields); err != nil {
				return nil, err
			}
		}
		contacts = append(contacts, c)
	}
	return contacts, rows.Err()
}

var _ ContactRepositoryInterface = (*ContactRepository)(nil)
