package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v4"
	"github.com/jackc/pgx/v4/pgxpool"

	"telegram-sticker-cloner/internal/domain/model"
	"telegram-sticker-cloner/internal/domain/ports/repository"
)

var _ repository.DocumentBackend = (*DocumentRepo)(nil)

const createDocumentsTable = `
CREATE TABLE IF NOT EXISTS bot_documents (
	id         TEXT PRIMARY KEY,
	body       JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

// DocumentRepo keeps the ledger document in a single JSONB row.
type DocumentRepo struct {
	pool *pgxpool.Pool
	tm   repository.TransactionManager
	id   string
}

func NewDocumentRepo(pool *pgxpool.Pool, tm repository.TransactionManager, id string) *DocumentRepo {
	return &DocumentRepo{pool: pool, tm: tm, id: id}
}

func (r *DocumentRepo) EnsureSchema(ctx context.Context) error {
	_, err := r.pool.Exec(ctx, createDocumentsTable)
	return err
}

func (r *DocumentRepo) Load(ctx context.Context) (*model.Document, error) {
	ex, err := getExecutor(r.pool, repository.NoTX)
	if err != nil {
		return nil, err
	}
	var body []byte
	err = ex.QueryRow(ctx, `SELECT body FROM bot_documents WHERE id = $1`, r.id).Scan(&body)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var doc model.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, fmt.Errorf("decode document %s: %w", r.id, err)
	}
	return &doc, nil
}

// Save upserts the row under an advisory lock so concurrent writers from other
// processes serialize on the same key.
func (r *DocumentRepo) Save(ctx context.Context, doc *model.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return r.tm.WithTx(ctx, pgx.TxOptions{}, func(ctx context.Context, tx repository.Tx) error {
		ex, err := getExecutor(r.pool, tx)
		if err != nil {
			return err
		}
		if _, err := ex.Exec(ctx, "SELECT pg_advisory_xact_lock($1)", hashToInt64(r.id)); err != nil {
			return err
		}
		_, err = ex.Exec(ctx, `
			INSERT INTO bot_documents (id, body, updated_at)
			VALUES ($1, $2, now())
			ON CONFLICT (id) DO UPDATE SET body = EXCLUDED.body, updated_at = now()`,
			r.id, body)
		return err
	})
}
