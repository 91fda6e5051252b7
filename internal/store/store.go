package store

import (
	"context"
	"errors"

	"deposit-ledger-go/internal/models"

	"github.com/shopspring/decimal"
)

// Sentinel errors shared across all backend implementations.
var (
	ErrNotFound               = errors.New("record not found")
	ErrDuplicate              = errors.New("duplicate record")
	ErrConcurrentModification = errors.New("concurrent modification detected")
)

// DepositFilter narrows ListDeposits. Zero values mean "any".
type DepositFilter struct {
	WalletId string
	UserId   string
	Status   models.DepositStatus
	Limit    int
	Offset   int
}

// DepositCAS is a compare-and-set on a deposit's (status, version). The update
// applies only when the stored row still matches FromStatus and Version.
type DepositCAS struct {
	Deposit    *models.Deposit
	FromStatus models.DepositStatus
	Version    int64
}

// Reader is the read side shared by the store and an open transaction.
type Reader interface {
	GetDeposit(ctx context.Context, depositId string) (*models.Deposit, error)
	GetDepositByExternalId(ctx context.Context, externalId string) (*models.Deposit, error)
	ListDeposits(ctx context.Context, filter DepositFilter) ([]models.Deposit, error)
	ListWalletDeposits(ctx context.Context, walletId string) ([]models.Deposit, error)

	GetWallet(ctx context.Context, walletId string) (*models.Wallet, error)
	ListWalletIds(ctx context.Context) ([]string, error)

	GetTransitionByIdempotencyKey(ctx context.Context, key string) (*models.Transition, error)
	GetDepositTransitions(ctx context.Context, depositId string) ([]models.Transition, error)

	// SumWalletAdjustments returns the net of the wallet's transition
	// adjustments and, separately, of its operator corrections.
	SumWalletAdjustments(ctx context.Context, walletId string) (transitions, corrections decimal.Decimal, err error)
}

// Tx is a unit of work. Every write made through it commits or rolls back
// together.
type Tx interface {
	Reader

	// LockDeposit and LockWallet read a row and hold it until the unit of
	// work ends, on backends that support row locks.
	LockDeposit(ctx context.Context, depositId string) (*models.Deposit, error)
	LockWallet(ctx context.Context, walletId string) (*models.Wallet, error)

	InsertDeposit(ctx context.Context, deposit *models.Deposit) error
	UpdateDeposit(ctx context.Context, cas DepositCAS) error
	UpdateWalletBalance(ctx context.Context, wallet *models.Wallet) error
	InsertTransition(ctx context.Context, transition *models.Transition) error
	InsertCorrection(ctx context.Context, correction *models.WalletCorrection) error
	InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error
}

// LedgerStore defines the contract that every backend (SQLite, Postgres) must satisfy.
type LedgerStore interface {
	Reader

	// RunInTx runs fn in a single transaction, committing when fn returns nil.
	RunInTx(ctx context.Context, fn func(ctx context.Context, tx Tx) error) error

	// ReadSnapshot runs fn against one consistent, read-only view. Writes
	// committed while fn runs are not visible to it.
	ReadSnapshot(ctx context.Context, fn func(ctx context.Context, r Reader) error) error

	// InsertAuditEntry writes outside any transaction; used for failures
	// recorded after a rollback.
	InsertAuditEntry(ctx context.Context, entry *models.AuditEntry) error
	GetAuditEntries(ctx context.Context, depositId string) ([]models.AuditEntry, error)

	// --- Wallets (external collaborator surface) ---
	CreateWallet(ctx context.Context, userId, currency string) (*models.Wallet, error)
	ListWallets(ctx context.Context) ([]models.Wallet, error)
	UpdateBalance(ctx context.Context, walletId string, newBalance, newTotalDeposited decimal.Decimal) error

	// --- Lifecycle ---
	Close()
}

// Mirror receives committed balance movements for replication to an external
// ledger. Implementations must be idempotent on transition and correction ids.
type Mirror interface {
	RecordTransition(ctx context.Context, wallet *models.Wallet, deposit *models.Deposit, transition *models.Transition) error
	RecordCorrection(ctx context.Context, wallet *models.Wallet, correction *models.WalletCorrection) error
}
