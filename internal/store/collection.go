package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type binding[T any] struct {
	id     func(*T) *string
	number func(*T) *string
	stamps func(*T) (created, updated *time.Time)
}

// Collection is one table of JSON records. Records with a numbering prefix
// are given the next number in sequence (e.g. IR-0007) when created blank.
type Collection[T any] struct {
	store  *Store
	table  string
	prefix string
	bind   binding[T]
}

func newCollection[T any](s *Store, table, prefix string, bind binding[T]) *Collection[T] {
	return &Collection[T]{store: s, table: table, prefix: prefix, bind: bind}
}

func (c *Collection[T]) Create(ctx context.Context, rec *T) error {
	id := c.bind.id(rec)
	if strings.TrimSpace(*id) == "" {
		*id = uuid.NewString()
	}
	now := c.store.now()
	created, updated := c.bind.stamps(rec)
	if created.IsZero() {
		*created = now
	}
	if updated != nil {
		*updated = now
	}
	err := withRetry(func() error {
		tx, err := c.store.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()
		if c.prefix != "" && c.bind.number != nil {
			if num := c.bind.number(rec); strings.TrimSpace(*num) == "" {
				next, err := nextSequence(ctx, tx, c.table)
				if err != nil {
					return err
				}
				*num = fmt.Sprintf("%s-%04d", c.prefix, next)
			}
		}
		payload, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx,
			fmt.Sprintf(`INSERT INTO %s (id, payload, created_at, updated_at) VALUES (?, ?, ?, ?)`, c.table),
			*id, string(payload), formatTime(*created), formatTime(now),
		); err != nil {
			return err
		}
		return tx.Commit()
	})
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("create %s: %w", c.table, err)
	}
	c.store.logger.Debug("record created", zap.String("table", c.table), zap.String("id", *id))
	return nil
}

// Update replaces an existing record, keeping its id, number and created_at.
func (c *Collection[T]) Update(ctx context.Context, id string, rec *T) error {
	existing, err := c.Get(ctx, id)
	if err != nil {
		return err
	}
	*c.bind.id(rec) = id
	created, updated := c.bind.stamps(rec)
	prevCreated, _ := c.bind.stamps(existing)
	*created = *prevCreated
	if c.bind.number != nil {
		*c.bind.number(rec) = *c.bind.number(existing)
	}
	now := c.store.now()
	if updated != nil {
		*updated = now
	}
	payload, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s: %w", c.table, err)
	}
	err = withRetry(func() error {
		_, err := c.store.db.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET payload = ?, updated_at = ? WHERE id = ?`, c.table),
			string(payload), formatTime(now), id,
		)
		return err
	})
	if isUniqueViolation(err) {
		return ErrDuplicate
	}
	if err != nil {
		return fmt.Errorf("update %s: %w", c.table, err)
	}
	return nil
}

func (c *Collection[T]) Get(ctx context.Context, id string) (*T, error) {
	var payload string
	err := c.store.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT payload FROM %s WHERE id = ?`, c.table), id,
	).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", c.table, err)
	}
	var rec T
	if err := json.Unmarshal([]byte(payload), &rec); err != nil {
		return nil, fmt.Errorf("decode %s %s: %w", c.table, id, err)
	}
	return &rec, nil
}

// List returns all records, newest first.
func (c *Collection[T]) List(ctx context.Context) ([]T, error) {
	return c.query(ctx, "", nil)
}

// ListWhere filters on a top-level JSON field.
func (c *Collection[T]) ListWhere(ctx context.Context, field string, value any) ([]T, error) {
	return c.query(ctx, `WHERE json_extract(payload, ?) = ?`, []any{"$." + field, value})
}

func (c *Collection[T]) query(ctx context.Context, where string, args []any) ([]T, error) {
	rows, err := c.store.db.QueryContext(ctx,
		fmt.Sprintf(`SELECT payload FROM %s %s ORDER BY created_at DESC, id`, c.table, where), args...,
	)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.table, err)
	}
	defer rows.Close()
	out := []T{}
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			return nil, err
		}
		var rec T
		if err := json.Unmarshal([]byte(payload), &rec); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.table, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	var res sql.Result
	err := withRetry(func() error {
		var err error
		res, err = c.store.db.ExecContext(ctx, fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, c.table), id)
		return err
	})
	if err != nil {
		return fmt.Errorf("delete %s: %w", c.table, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func nextSequence(ctx context.Context, tx *sql.Tx, name string) (int64, error) {
	var next int64
	err := tx.QueryRowContext(ctx,
		`INSERT INTO sequences (name, value) VALUES (?, 1)
		 ON CONFLICT(name) DO UPDATE SET value = value + 1
		 RETURNING value`, name,
	).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("next sequence %s: %w", name, err)
	}
	return next, nil
}
