package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/wpnative/instant-articles/internal/rules"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const ruleColumns = `id, type, rule, selector, status, meta`

func scanRule(s rowScanner) (rules.Rule, error) {
	var (
		r    rules.Rule
		meta string
	)
	if err := s.Scan(&r.ID, &r.Type, &r.Rule, &r.Selector, &r.Status, &meta); err != nil {
		return r, fmt.Errorf("scan rule: %w", err)
	}
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &r.Meta); err != nil {
			return r, fmt.Errorf("decode meta of rule %d: %w", r.ID, err)
		}
	}
	return r, nil
}

func collectRules(rows *sql.Rows) ([]rules.Rule, error) {
	defer rows.Close()
	var out []rules.Rule
	for rows.Next() {
		r, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// AddRule validates and stores a rule, returning it with its new ID.
func (d *DB) AddRule(ctx context.Context, r rules.Rule) (rules.Rule, error) {
	r.Normalize()
	if err := r.Validate(); err != nil {
		return r, err
	}
	meta, err := json.Marshal(r.Meta)
	if err != nil {
		return r, fmt.Errorf("encode meta: %w", err)
	}
	res, err := d.db.ExecContext(ctx, `INSERT INTO rules (type, rule, selector, status, meta) VALUES (?, ?, ?, ?, ?)`,
		r.Type, r.Rule, r.Selector, r.Status, string(meta))
	if err != nil {
		return r, fmt.Errorf("insert rule: %w", err)
	}
	if r.ID, err = res.LastInsertId(); err != nil {
		return r, fmt.Errorf("rule id: %w", err)
	}
	return r, nil
}

// ReplaceRules swaps the whole rule set in one transaction. Every rule is
// validated first; one invalid rule leaves the stored set untouched.
func (d *DB) ReplaceRules(ctx context.Context, set []rules.Rule) error {
	for i := range set {
		set[i].Normalize()
		if err := set[i].Validate(); err != nil {
			return fmt.Errorf("rule %d: %w", i+1, err)
		}
	}
	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM rules`); err != nil {
		return fmt.Errorf("clear rules: %w", err)
	}
	stmt, err := tx.PrepareContext(ctx, `INSERT INTO rules (type, rule, selector, status, meta) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer stmt.Close()
	for _, r := range set {
		meta, err := json.Marshal(r.Meta)
		if err != nil {
			return fmt.Errorf("encode meta: %w", err)
		}
		if _, err := stmt.ExecContext(ctx, r.Type, r.Rule, r.Selector, r.Status, string(meta)); err != nil {
			return fmt.Errorf("insert rule: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit rules: %w", err)
	}
	return nil
}

// ActiveRules implements rules.Source.
func (d *DB) ActiveRules(ctx context.Context, offset, limit int) ([]rules.Rule, error) {
	rows, err := d.db.QueryContext(ctx,
		`SELECT `+ruleColumns+` FROM rules WHERE status = ? ORDER BY id LIMIT ? OFFSET ?`,
		rules.StatusActive, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query active rules: %w", err)
	}
	return collectRules(rows)
}

// Rules lists every stored rule, active or not.
func (d *DB) Rules(ctx context.Context) ([]rules.Rule, error) {
	rows, err := d.db.QueryContext(ctx, `SELECT `+ruleColumns+` FROM rules ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("query rules: %w", err)
	}
	return collectRules(rows)
}

// DeleteRule removes one rule.
func (d *DB) DeleteRule(ctx context.Context, id int64) error {
	res, err := d.db.ExecContext(ctx, `DELETE FROM rules WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete rule %d: %w", id, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("rule %d: %w", id, ErrNotFound)
	}
	return nil
}
