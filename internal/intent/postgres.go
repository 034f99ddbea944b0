// momo-gateway/internal/intent/postgres.go
package intent

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	apperr "github.com/example/momo-gateway/pkg/errors"
)

// PostgresStore keeps intents in a single table. Schema:
//
//	CREATE TABLE IF NOT EXISTS momo_intents (
//	    reference_id       TEXT PRIMARY KEY,
//	    external_id        TEXT NOT NULL,
//	    direction          TEXT NOT NULL,
//	    scope              TEXT NOT NULL,
//	    amount             TEXT NOT NULL,
//	    currency           TEXT NOT NULL,
//	    counterparty_phone TEXT NOT NULL,
//	    status             TEXT NOT NULL,
//	    provider_reference TEXT NOT NULL DEFAULT '',
//	    reason             TEXT NOT NULL DEFAULT '',
//	    created_at         TIMESTAMPTZ NOT NULL,
//	    last_checked_at    TIMESTAMPTZ
//	);
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindConfig, "db_connect", "connect postgres", err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (p *PostgresStore) Close() { p.pool.Close() }

func (p *PostgresStore) Create(ctx context.Context, it PaymentIntent) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO momo_intents
		(reference_id, external_id, direction, scope, amount, currency,
		 counterparty_phone, status, provider_reference, reason, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		it.ReferenceID, it.ExternalID, it.Direction, it.Scope, it.Amount, it.Currency,
		it.CounterpartyPhone, it.Status, it.ProviderReference, it.Reason, it.CreatedAt)
	if err != nil {
		return apperr.Wrap(apperr.KindTransient, "db_insert", "insert intent", err)
	}
	return nil
}

func (p *PostgresStore) Get(ctx context.Context, referenceID string) (PaymentIntent, error) {
	return p.scanOne(p.pool.QueryRow(ctx, `
		SELECT reference_id, external_id, direction, scope, amount, currency,
		       counterparty_phone, status, provider_reference, reason,
		       created_at, last_checked_at
		FROM momo_intents WHERE reference_id = $1`, referenceID), referenceID)
}

func (p *PostgresStore) Apply(ctx context.Context, ev ReconciliationEvent) (PaymentIntent, error) {
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return PaymentIntent{}, apperr.Wrap(apperr.KindTransient, "db_tx", "begin tx", err)
	}
	defer tx.Rollback(ctx)

	cur, err := p.scanOne(tx.QueryRow(ctx, `
		SELECT reference_id, external_id, direction, scope, amount, currency,
		       counterparty_phone, status, provider_reference, reason,
		       created_at, last_checked_at
		FROM momo_intents WHERE reference_id = $1 FOR UPDATE`, ev.ReferenceID), ev.ReferenceID)
	if err != nil {
		return PaymentIntent{}, err
	}

	next, _ := merge(cur, ev, time.Now().UTC())
	_, err = tx.Exec(ctx, `
		UPDATE momo_intents
		SET status = $2, reason = $3, provider_reference = $4, last_checked_at = $5
		WHERE reference_id = $1`,
		next.ReferenceID, next.Status, next.Reason, next.ProviderReference, next.LastCheckedAt)
	if err != nil {
		return PaymentIntent{}, apperr.Wrap(apperr.KindTransient, "db_update", "update intent", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return PaymentIntent{}, apperr.Wrap(apperr.KindTransient, "db_commit", "commit intent update", err)
	}
	return next, nil
}

func (p *PostgresStore) ListUnsettled(ctx context.Context, cutoff time.Time, limit int) ([]PaymentIntent, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT reference_id, external_id, direction, scope, amount, currency,
		       counterparty_phone, status, provider_reference, reason,
		       created_at, last_checked_at
		FROM momo_intents
		WHERE status IN ($1, $2) AND created_at < $3
		ORDER BY created_at ASC
		LIMIT $4`, StatusPending, StatusUnknown, cutoff, limit)
	if err != nil {
		return nil, apperr.Wrap(apperr.KindTransient, "db_query", "list unsettled", err)
	}
	defer rows.Close()

	var out []PaymentIntent
	for rows.Next() {
		it, err := scanIntent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (p *PostgresStore) scanOne(row rowScanner, referenceID string) (PaymentIntent, error) {
	it, err := scanIntent(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return PaymentIntent{}, apperr.New(apperr.KindNotFound, "intent_not_found",
			"no intent with reference "+referenceID)
	}
	return it, err
}

func scanIntent(row rowScanner) (PaymentIntent, error) {
	var it PaymentIntent
	var lastChecked *time.Time
	err := row.Scan(&it.ReferenceID, &it.ExternalID, &it.Direction, &it.Scope,
		&it.Amount, &it.Currency, &it.CounterpartyPhone, &it.Status,
		&it.ProviderReference, &it.Reason, &it.CreatedAt, &lastChecked)
	if err != nil {
		return PaymentIntent{}, err
	}
	if lastChecked != nil {
		it.LastCheckedAt = *lastChecked
	}
	return it, nil
}
