package memrepo

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rpattn/sapingest/internal/domain"
	"github.com/rpattn/sapingest/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithinTransactionPublishesOnSuccess(t *testing.T) {
	store := NewStore()
	ctx := context.Background()

	err := store.WithinTransaction(ctx, func(ctx context.Context, repos repository.Repositories) error {
		result, err := repos.Contracts.Upsert(ctx, domain.Contract{ContractKey: "CT-1", ContractNumber: "CT-1"})
		require.NoError(t, err)
		assert.True(t, result.Inserted)
		return nil
	})
	require.NoError(t, err)
	require.Len(t, store.Contracts(), 1)
}

func TestWithinTransactionRollsBack(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	boom := errors.New("boom")

	err := store.WithinTransaction(ctx, func(ctx context.Context, repos repository.Repositories) error {
		_, err := repos.Contracts.Upsert(ctx, domain.Contract{ContractKey: "CT-1"})
		require.NoError(t, err)
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, store.Contracts())
}

func TestContractUpsertMergesAndDetectsUnchanged(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	qty := decimal.NewNullDecimal(decimal.NewFromInt(1000))

	upsert := func(c domain.Contract) domain.UpsertResult {
		var result domain.UpsertResult
		require.NoError(t, store.WithinTransaction(ctx, func(ctx context.Context, repos repository.Repositories) error {
			var err error
			result, err = repos.Contracts.Upsert(ctx, c)
			return err
		}))
		return result
	}

	first := upsert(domain.Contract{ContractKey: "CT-1", ContractNumber: "CT-1", Product: "CPO", Quantity: qty})
	assert.Equal(t, domain.ChangeCreated, first.Action())

	second := upsert(domain.Contract{ContractKey: "CT-1", ContractNumber: "CT-1"})
	assert.Equal(t, domain.ChangeUnchanged, second.Action(), "blank values never overwrite")
	assert.Equal(t, first.ID, second.ID)

	third := upsert(domain.Contract{ContractKey: "CT-1", Product: "PKO"})
	assert.Equal(t, domain.ChangeUpdated, third.Action())

	stored := store.Contracts()[0]
	assert.Equal(t, "PKO", stored.Product)
	assert.True(t, stored.Quantity.Decimal.Equal(decimal.NewFromInt(1000)))
}

func TestListByStatus(t *testing.T) {
	store := NewStore()
	ctx := context.Background()
	batch, err := store.Batches().Create(ctx, domain.NewImportBatch("a.csv", "a", time.Now()))
	require.NoError(t, err)

	for _, row := range []int{5, 2, 9} {
		require.NoError(t, store.Rows().Archive(ctx, batch.ID, domain.ParsedRecord{RowNumber: row, Raw: domain.RawRow{"A": "x"}}))
		require.NoError(t, store.Rows().MarkResult(ctx, batch.ID, row, repository.RowStatusFailed, "bad"))
	}
	require.NoError(t, store.Rows().MarkResult(ctx, batch.ID, 9, repository.RowStatusProcessed, ""))

	failed, err := store.Rows().ListByStatus(ctx, batch.ID, repository.RowStatusFailed, 10, 0)
	require.NoError(t, err)
	require.Len(t, failed, 2)
	assert.Equal(t, 2, failed[0].Record.RowNumber)
	assert.Equal(t, 5, failed[1].Record.RowNumber)
	assert.Equal(t, "bad", failed[0].ErrorMessage)

	page, err := store.Rows().ListByStatus(ctx, batch.ID, repository.RowStatusFailed, 1, 1)
	require.NoError(t, err)
	require.Len(t, page, 1)
	assert.Equal(t, 5, page[0].Record.RowNumber)
}
