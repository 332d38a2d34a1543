package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestImportBatchLifecycle(t *testing.T) {
	start := time.Date(2024, 3, 15, 8, 0, 0, 0, time.UTC)
	batch := NewImportBatch("zmm.xlsx", "Sheet1", start)
	assert.Equal(t, BatchStatusPending, batch.Status)
	assert.Nil(t, batch.CompletedAt)

	require.NoError(t, batch.Transition(BatchStatusProcessing, start.Add(time.Second)))
	batch.RecordRow(false, start.Add(2*time.Second))
	batch.RecordRow(true, start.Add(3*time.Second))
	batch.RecordRow(false, start.Add(4*time.Second))
	assert.Equal(t, 2, batch.ProcessedRows)
	assert.Equal(t, 1, batch.FailedRows)
	assert.Equal(t, 3, batch.Attempted())

	done := start.Add(5 * time.Second)
	require.NoError(t, batch.Transition(BatchStatusCompleted, done))
	require.NotNil(t, batch.CompletedAt)
	assert.Equal(t, done, *batch.CompletedAt)
	assert.True(t, batch.Status.IsTerminal())
}

func TestImportBatchTransitionsAreMonotonic(t *testing.T) {
	now := time.Now()
	cases := []struct {
		name string
		path []BatchStatus
		bad  BatchStatus
	}{
		{"pending cannot complete", nil, BatchStatusCompleted},
		{"completed cannot fail", []BatchStatus{BatchStatusProcessing, BatchStatusCompleted}, BatchStatusFailed},
		{"failed cannot resume", []BatchStatus{BatchStatusFailed}, BatchStatusProcessing},
		{"processing cannot go back", []BatchStatus{BatchStatusProcessing}, BatchStatusPending},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			batch := NewImportBatch("a.csv", "a", now)
			for _, status := range tc.path {
				require.NoError(t, batch.Transition(status, now))
			}
			before := batch.Status
			err := batch.Transition(tc.bad, now)
			assert.ErrorIs(t, err, ErrInvalidTransition)
			assert.Equal(t, before, batch.Status)
		})
	}
}

func TestImportBatchFail(t *testing.T) {
	now := time.Now()
	batch := NewImportBatch("a.csv", "a", now)
	require.NoError(t, batch.Fail(errors.New("sheet not found"), now))
	assert.Equal(t, BatchStatusFailed, batch.Status)
	assert.Equal(t, "sheet not found", batch.ErrorMessage)

	assert.ErrorIs(t, batch.Fail(errors.New("again"), now), ErrInvalidTransition)
	assert.Equal(t, "sheet not found", batch.ErrorMessage)
}

func TestContractKeyFor(t *testing.T) {
	assert.Equal(t, "CT-1", ContractKeyFor(" CT-1 ", "4500001"))
	assert.Equal(t, SyntheticContractKeyPrefix+"4500001", ContractKeyFor("", " 4500001"))
	assert.Empty(t, ContractKeyFor(" ", ""))

	assert.True(t, Contract{ContractKey: ContractKeyFor("", "4500001")}.IsSyntheticKey())
	assert.False(t, Contract{ContractKey: "CT-1", ContractNumber: "CT-1"}.IsSyntheticKey())
}

func TestContractReferenceMatches(t *testing.T) {
	contract := Contract{ContractKey: "CT-1", ContractNumber: "CT-1", PONumber: "4500001", STONumber: "STO-1"}

	assert.True(t, ContractReference{ContractNumber: "CT-1"}.Matches(contract))
	assert.True(t, ContractReference{STONumber: "STO-1"}.Matches(contract))
	assert.True(t, ContractReference{PONumber: "4500001"}.Matches(contract))
	assert.False(t, ContractReference{ContractNumber: "CT-2"}.Matches(contract))
	assert.True(t, ContractReference{}.IsZero())
	assert.False(t, ContractReference{}.Matches(contract))
}

func TestSurveyKeyFor(t *testing.T) {
	assert.Equal(t, "SR-9", SurveyKeyFor("SR-9", "STO-1", "dumai"))
	assert.Equal(t, "STO-1/DUMAI", SurveyKeyFor("", " STO-1 ", "dumai"))
	assert.Empty(t, SurveyKeyFor("", "STO-1", ""))
	assert.Empty(t, SurveyKeyFor("", "", "Dumai"))
}

func TestUpsertResultAction(t *testing.T) {
	assert.Equal(t, ChangeCreated, UpsertResult{Inserted: true}.Action())
	assert.Equal(t, ChangeUnchanged, UpsertResult{Unchanged: true}.Action())
	assert.Equal(t, ChangeUpdated, UpsertResult{}.Action())
}

func TestTruckingFields(t *testing.T) {
	assert.True(t, TruckingFields{}.IsEmpty())
	assert.False(t, TruckingFields{TruckNumber: "B 1234"}.IsEmpty())
	assert.False(t, TruckingFields{TruckNumber: "B 1234"}.HasKey())
	assert.True(t, TruckingFields{TripID: "T-1"}.HasKey())
}
