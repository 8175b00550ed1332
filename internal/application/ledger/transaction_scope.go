package ledger

import (
	"context"

	"github.com/primebond/ledger/internal/domain/ledger"
)

// TransactionScope provides transactional access to ledger repositories.
// All repository operations inside Execute share one database transaction
// and are committed or rolled back together.
type TransactionScope interface {
	// Execute runs fn within a database transaction.
	// If fn returns an error, the transaction is rolled back.
	Execute(ctx context.Context, fn func(repos TransactionalRepositories) error) error
}

// TransactionalRepositories exposes every ledger repository bound to the
// current transaction.
//
// Code running inside Execute must only use these repositories; reaching for
// a non-transactional repository would read outside the unit of work and,
// on a single-connection pool, block forever.
type TransactionalRepositories interface {
	Plans() ledger.PlanRepository
	Investments() ledger.InvestmentRepository
	Payments() ledger.PaymentRepository
	ROIs() ledger.ROIRepository
	Returns() ledger.ReturnRepository
	Members() ledger.MemberRepository
}
