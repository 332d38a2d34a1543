package repository

import (
	"context"

	"github.com/rpattn/sapingest/internal/db"

	"github.com/jackc/pgx/v5"
)

type pgUnitOfWork struct {
	conn *db.Connection
}

// NewUnitOfWork runs each unit in its own pooled transaction.
func NewUnitOfWork(conn *db.Connection) UnitOfWork {
	return &pgUnitOfWork{conn: conn}
}

func (u *pgUnitOfWork) WithinTransaction(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error {
	return u.conn.WithTx(ctx, func(tx pgx.Tx) error {
		return fn(ctx, NewRepositories(tx))
	})
}

// NewRepositories binds every normalized-table repository to q.
func NewRepositories(q db.DBTX) Repositories {
	return Repositories{
		Contracts: NewContractRepository(q),
		Shipments: NewShipmentRepository(q),
		Trucking:  NewTruckingOperationRepository(q),
		Surveys:   NewQualitySurveyRepository(q),
	}
}
