package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

var qb = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Querier is the subset of pgxpool.Pool the Postgres store uses.
type Querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Postgres keeps shipment state in the jsonb column "shipment" of the
// orders table. Merges use jsonb concatenation so concurrent writers of
// disjoint keys do not lose each other's fields. A merge carrying a
// shipment id only matches rows whose shipment id is unset or equal.
type Postgres struct {
	db    Querier
	table string
	now   func() time.Time
	close func()
}

// NewPostgres creates a Postgres store over db. closeFn may be nil.
func NewPostgres(db Querier, table string, closeFn func()) *Postgres {
	if table == "" {
		table = "orders"
	}
	return &Postgres{db: db, table: table, now: time.Now, close: closeFn}
}

// Merge implements Store.
func (p *Postgres) Merge(ctx context.Context, orderID string, fields Fields) error {
	query, args, err := p.mergeQuery(orderID, fields)
	if err != nil {
		return persistenceErr("building merge", err)
	}
	if query == "" {
		return nil
	}

	tag, err := p.db.Exec(ctx, query, args...)
	if err != nil {
		return persistenceErr("merging shipment state", err)
	}
	if tag.RowsAffected() == 0 {
		if fields.ShipmentID != nil {
			return p.missOrConflict(ctx, orderID)
		}
		return fmt.Errorf("merging shipment state of %q: %w", orderID, ErrOrderNotFound)
	}
	return nil
}

// missOrConflict explains a guarded merge that touched no row.
func (p *Postgres) missOrConflict(ctx context.Context, orderID string) error {
	query, args, err := qb.Select("id").From(p.table).Where(sq.Eq{"id": orderID}).ToSql()
	if err != nil {
		return persistenceErr("building existence check", err)
	}

	var id string
	if err := p.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("merging shipment state of %q: %w", orderID, ErrOrderNotFound)
		}
		return persistenceErr("checking order", err)
	}
	return shipmentConflict(orderID)
}

func (p *Postgres) mergeQuery(orderID string, fields Fields) (string, []any, error) {
	patch := fields.Patch()
	if patch == nil {
		return "", nil, nil
	}
	patch["last_synced"] = p.now().UTC()

	doc, err := json.Marshal(patch)
	if err != nil {
		return "", nil, err
	}

	update := qb.Update(p.table).
		Set("shipment", sq.Expr("COALESCE(shipment, '{}'::jsonb) || ?::jsonb", string(doc))).
		Where(sq.Eq{"id": orderID})
	if fields.ShipmentID != nil {
		update = update.Where("(shipment->>'shipment_id' IS NULL OR shipment->>'shipment_id' = '' OR shipment->>'shipment_id' = ?)", *fields.ShipmentID)
	}
	return update.ToSql()
}

// FindOrderID implements Store.
func (p *Postgres) FindOrderID(ctx context.Context, key Key, value string) (string, error) {
	if !key.Valid() {
		return "", invalidKey(key)
	}

	query, args, err := qb.Select("id").
		From(p.table).
		Where(sq.Expr(fmt.Sprintf("shipment->>'%s' = ?", key), value)).
		Limit(1).
		ToSql()
	if err != nil {
		return "", persistenceErr("building lookup", err)
	}

	var id string
	if err := p.db.QueryRow(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", ErrOrderNotFound
		}
		return "", persistenceErr("looking up order", err)
	}
	return id, nil
}

// Get implements Store.
func (p *Postgres) Get(ctx context.Context, orderID string) (*ShipmentState, error) {
	query, args, err := qb.Select("COALESCE(shipment, '{}'::jsonb)").
		From(p.table).
		Where(sq.Eq{"id": orderID}).
		ToSql()
	if err != nil {
		return nil, persistenceErr("building get", err)
	}

	var raw []byte
	if err := p.db.QueryRow(ctx, query, args...).Scan(&raw); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, persistenceErr("reading shipment state", err)
	}

	var state ShipmentState
	if err := json.Unmarshal(raw, &state); err != nil {
		return nil, persistenceErr("decoding shipment state", err)
	}
	return &state, nil
}

// Close implements Store.
func (p *Postgres) Close(ctx context.Context) error {
	if p.close != nil {
		p.close()
	}
	return nil
}

var _ Store = (*Postgres)(nil)
