package repository

import (
	"database/sql"

	appErrors "github.com/unclebandit/mailblast-backend/internal/errors"
)

// BlobStore is the worker's view of the attachment store: content is looked
// up by key at send time.
type BlobStore interface {
	Get(key string) (filename string, content []byte, err error)
}

type AttachmentRepository struct {
	DB *sql.DB
}

func (r *AttachmentRepository) Get(key string) (string, []byte, error) {
	query := `SELECT filename, content FROM attachments WHERE key=$1`
	var filename string
	var content []byte
	err := r.DB.QueryRow(query, key).Scan(&filename, &content)
	if err != nil {
		if err == sql.ErrNoRows {
			return "", nil, appErrors.NewAttachmentNotFound(key)
		}
		return "", nil, err
	}
	return filename, content, nil
}

// Put stores a blob; used by the seeder.
func (r *AttachmentRepository) Put(key, filename string, content []byte) error {
	query := `
        INSERT INTO attachments (key, filename, content, size_bytes)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (key) DO UPDATE SET filename=$2, content=$3, size_bytes=$4
    `
	_, err := r.DB.Exec(query, key, filename, content, len(content))
	return err
}

var _ BlobStore = (*AttachmentRepository)(nil)
