package repository

import (
	"context"
	"fmt"

	"github.com/rpattn/sapingest/internal/db"
	"github.com/rpattn/sapingest/internal/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const contractColumns = `id, contract_key, contract_number, po_number, sto_number, supplier, product,
	quantity, unit, price, currency, incoterm, contract_date, delivery_start, delivery_end,
	classification, source_batch_id, created_at, updated_at`

var contractUpsert = upsertStatement{
	table:     "contracts",
	keyColumn: "contract_key",
	columns: []string{
		"id", "contract_key", "contract_number", "po_number", "sto_number", "supplier", "product",
		"quantity", "unit", "price", "currency", "incoterm", "contract_date", "delivery_start",
		"delivery_end", "classification", "source_batch_id",
	},
	mutable: []string{
		"sto_number", "supplier", "product", "quantity", "unit", "price", "currency",
		"incoterm", "contract_date", "delivery_start", "delivery_end", "classification",
	},
	sticky: []string{"contract_number", "po_number"},
}

type contractRepository struct {
	q db.DBTX
}

// NewContractRepository binds a contract repository to a pool or transaction.
func NewContractRepository(q db.DBTX) ContractRepository {
	return &contractRepository{q: q}
}

func (r *contractRepository) GetByKey(ctx context.Context, key string) (domain.Contract, error) {
	row := r.q.QueryRow(ctx, `SELECT `+contractColumns+` FROM contracts WHERE contract_key = $1`, key)
	contract, err := scanContract(row)
	if err != nil {
		return domain.Contract{}, wrapNotFound(err, fmt.Sprintf("contract %q", key))
	}
	return contract, nil
}

// FindByReference prefers a contract-number match, then STO, then PO.
func (r *contractRepository) FindByReference(ctx context.Context, ref domain.ContractReference) (domain.Contract, error) {
	if ref.IsZero() {
		return domain.Contract{}, fmt.Errorf("empty contract reference: %w", ErrNotFound)
	}

	row := r.q.QueryRow(ctx,
		`SELECT `+contractColumns+`
		 FROM contracts
		 WHERE ($1::text <> '' AND (contract_number = $1::text OR contract_key = $1::text))
		    OR ($2::text <> '' AND sto_number = $2::text)
		    OR ($3::text <> '' AND po_number = $3::text)
		 ORDER BY CASE
		            WHEN $1::text <> '' AND (contract_number = $1::text OR contract_key = $1::text) THEN 0
		            WHEN $2::text <> '' AND sto_number = $2::text THEN 1
		            ELSE 2
		          END,
		          created_at
		 LIMIT 1`,
		ref.ContractNumber, ref.STONumber, ref.PONumber,
	)
	contract, err := scanContract(row)
	if err != nil {
		return domain.Contract{}, wrapNotFound(err, "contract by reference")
	}
	return contract, nil
}

func (r *contractRepository) Upsert(ctx context.Context, c domain.Contract) (domain.UpsertResult, error) {
	args := []any{
		newID(c.ID),
		c.ContractKey,
		textArg(c.ContractNumber),
		textArg(c.PONumber),
		textArg(c.STONumber),
		textArg(c.Supplier),
		textArg(c.Product),
		decimalArg(c.Quantity),
		textArg(c.Unit),
		decimalArg(c.Price),
		textArg(c.Currency),
		textArg(c.Incoterm),
		dateArg(c.ContractDate),
		dateArg(c.DeliveryStart),
		dateArg(c.DeliveryEnd),
		textArg(c.Classification),
		batchArg(c.SourceBatchID),
	}
	return contractUpsert.exec(ctx, r.q, c.ContractKey, args)
}

func (r *contractRepository) Rekey(ctx context.Context, id uuid.UUID, newKey string, contractNumber string) error {
	tag, err := r.q.Exec(ctx,
		`UPDATE contracts SET contract_key = $2, contract_number = $3, updated_at = now() WHERE id = $1`,
		id, newKey, contractNumber,
	)
	if err != nil {
		return fmt.Errorf("failed to rekey contract %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("contract %s: %w", id, ErrNotFound)
	}
	return nil
}

func scanContract(row pgx.Row) (domain.Contract, error) {
	var c domain.Contract
	var number, po, sto, supplier, product pgtype.Text
	var unit, currency, incoterm, classification pgtype.Text
	var quantity, price pgtype.Numeric
	var contractDate, deliveryStart, deliveryEnd pgtype.Date
	var sourceBatch pgtype.UUID
	err := row.Scan(
		&c.ID, &c.ContractKey, &number, &po, &sto, &supplier, &product,
		&quantity, &unit, &price, &currency, &incoterm, &contractDate, &deliveryStart, &deliveryEnd,
		&classification, &sourceBatch, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return domain.Contract{}, err
	}

	c.ContractNumber = number.String
	c.PONumber = po.String
	c.STONumber = sto.String
	c.Supplier = supplier.String
	c.Product = product.String
	c.Quantity = decimalValue(quantity)
	c.Unit = unit.String
	c.Price = decimalValue(price)
	c.Currency = currency.String
	c.Incoterm = incoterm.String
	c.ContractDate = dateValue(contractDate)
	c.DeliveryStart = dateValue(deliveryStart)
	c.DeliveryEnd = dateValue(deliveryEnd)
	c.Classification = classification.String
	if id := uuidValue(sourceBatch); id != nil {
		c.SourceBatchID = *id
	}
	return c, nil
}
