package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rpattn/sapingest/internal/db"
	"github.com/rpattn/sapingest/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/shopspring/decimal"
)

// upsertStatement renders an INSERT ... ON CONFLICT for a natural-key table.
// Mutable columns take the incoming value unless it is NULL; sticky columns
// keep the stored value once set. Rows whose values would not change are left
// untouched, so re-running a row does not bump updated_at.
type upsertStatement struct {
	table     string
	keyColumn string
	columns   []string // insert order; first is id, second is the key column
	mutable   []string
	sticky    []string
}

func (s upsertStatement) sql() string {
	placeholders := make([]string, len(s.columns))
	for i := range s.columns {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}

	var (
		sets    []string
		current []string
		next    []string
	)
	for _, col := range s.mutable {
		merged := fmt.Sprintf("COALESCE(EXCLUDED.%s, t.%s)", col, col)
		sets = append(sets, fmt.Sprintf("%s = %s", col, merged))
		current = append(current, "t."+col)
		next = append(next, merged)
	}
	for _, col := range s.sticky {
		merged := fmt.Sprintf("COALESCE(t.%s, EXCLUDED.%s)", col, col)
		sets = append(sets, fmt.Sprintf("%s = %s", col, merged))
		current = append(current, "t."+col)
		next = append(next, merged)
	}
	sets = append(sets, "updated_at = now()")

	return fmt.Sprintf(
		`INSERT INTO %s AS t (%s) VALUES (%s)
		 ON CONFLICT (%s) DO UPDATE SET %s
		 WHERE (%s) IS DISTINCT FROM (%s)
		 RETURNING id, (xmax = 0) AS inserted`,
		s.table,
		strings.Join(s.columns, ", "),
		strings.Join(placeholders, ", "),
		s.keyColumn,
		strings.Join(sets, ", "),
		strings.Join(current, ", "),
		strings.Join(next, ", "),
	)
}

func (s upsertStatement) exec(ctx context.Context, q db.DBTX, key string, args []any) (domain.UpsertResult, error) {
	var result domain.UpsertResult
	err := q.QueryRow(ctx, s.sql(), args...).Scan(&result.ID, &result.Inserted)
	if err == nil {
		return result, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return domain.UpsertResult{}, fmt.Errorf("failed to upsert %s %q: %w", s.table, key, err)
	}

	// Conflict with no effective change: the row exists as-is.
	err = q.QueryRow(ctx, fmt.Sprintf("SELECT id FROM %s WHERE %s = $1", s.table, s.keyColumn), key).Scan(&result.ID)
	if err != nil {
		return domain.UpsertResult{}, fmt.Errorf("failed to load unchanged %s %q: %w", s.table, key, err)
	}
	result.Unchanged = true
	return result, nil
}

func newID(id uuid.UUID) uuid.UUID {
	if id == uuid.Nil {
		return uuid.New()
	}
	return id
}

func textArg(value string) pgtype.Text {
	value = strings.TrimSpace(value)
	return pgtype.Text{String: value, Valid: value != ""}
}

func dateArg(value *time.Time) pgtype.Date {
	if value == nil {
		return pgtype.Date{}
	}
	return pgtype.Date{Time: *value, Valid: true}
}

func decimalArg(value decimal.NullDecimal) any {
	if !value.Valid {
		return nil
	}
	return value.Decimal.String()
}

func uuidArg(value *uuid.UUID) pgtype.UUID {
	if value == nil || *value == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: *value, Valid: true}
}

func batchArg(value uuid.UUID) pgtype.UUID {
	if value == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: value, Valid: true}
}

func dateValue(value pgtype.Date) *time.Time {
	if !value.Valid {
		return nil
	}
	t := time.Date(value.Time.Year(), value.Time.Month(), value.Time.Day(), 0, 0, 0, 0, time.UTC)
	return &t
}

func decimalValue(value pgtype.Numeric) decimal.NullDecimal {
	if !value.Valid || value.NaN || value.Int == nil {
		return decimal.NullDecimal{}
	}
	return decimal.NewNullDecimal(decimal.NewFromBigInt(value.Int, value.Exp))
}

func uuidValue(value pgtype.UUID) *uuid.UUID {
	if !value.Valid {
		return nil
	}
	id := uuid.UUID(value.Bytes)
	return &id
}

func wrapNotFound(err error, what string) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("%s: %w", what, ErrNotFound)
	}
	return fmt.Errorf("failed to load %s: %w", what, err)
}

// linkContract attaches unlinked rows of table whose references match the contract.
func linkContract(ctx context.Context, q db.DBTX, table string, contract domain.Contract) (int64, error) {
	tag, err := q.Exec(ctx,
		fmt.Sprintf(`UPDATE %s
		 SET contract_id = $1, updated_at = now()
		 WHERE contract_id IS NULL
		   AND (($2::text <> '' AND contract_number = $2::text)
		     OR ($3::text <> '' AND sto_number = $3::text)
		     OR ($4::text <> '' AND po_number = $4::text))`, table),
		contract.ID, contract.ContractNumber, contract.STONumber, contract.PONumber,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to link %s to contract %s: %w", table, contract.ContractKey, err)
	}
	return tag.RowsAffected(), nil
}
