package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"affinet/internal/ledger/models"
	"affinet/pkg/domain"
	"affinet/pkg/platform/sentinel"
)

// isUniqueViolation reports whether err is a PostgreSQL unique constraint
// violation, which maps to the store's conflict sentinel.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// PostgresTransactions persists the transaction log in PostgreSQL.
//
// Escrow settlement uses a conditional UPDATE on (correlation_id, status)
// so that concurrent release attempts resolve to exactly one winner; a
// partial unique index on open escrows enforces one hold per correlation.
type PostgresTransactions struct {
	db *sql.DB
}

// NewPostgresTransactions constructs a PostgreSQL-backed transaction log.
func NewPostgresTransactions(db *sql.DB) *PostgresTransactions {
	return &PostgresTransactions{db: db}
}

const transactionColumns = `
	id, payer, payee, gross, fee, commission, net,
	currency, kind, status, ts, description, correlation_id
`

func (s *PostgresTransactions) Append(ctx context.Context, tx *models.Transaction) error {
	if tx == nil {
		return fmt.Errorf("transaction is required")
	}
	query := `
		INSERT INTO ledger_transactions (` + transactionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
	`
	_, err := s.db.ExecContext(ctx, query,
		tx.ID.String(),
		tx.Payer.String(),
		tx.Payee.String(),
		tx.Gross,
		tx.Fee,
		tx.Commission,
		tx.Net,
		tx.Currency,
		string(tx.Kind),
		string(tx.Status),
		tx.Timestamp,
		tx.Description,
		string(tx.CorrelationID),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert transaction: %w", err)
	}
	return nil
}

func (s *PostgresTransactions) FindByID(ctx context.Context, txID domain.TransactionID) (*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM ledger_transactions
		WHERE id = $1
	`
	row := s.db.QueryRowContext(ctx, query, txID.String())
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find transaction: %w", err)
	}
	return tx, nil
}

func (s *PostgresTransactions) FindEscrowByCorrelation(ctx context.Context, correlationID domain.CorrelationID) (*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM ledger_transactions
		WHERE correlation_id = $1 AND status = $2
	`
	row := s.db.QueryRowContext(ctx, query, string(correlationID), string(models.TxEscrowed))
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find escrow hold: %w", err)
	}
	return tx, nil
}

// SettleEscrow transitions the open escrow hold for correlationID to a
// terminal status. The WHERE clause on the current status is the
// compare-and-swap: of any number of concurrent callers, exactly one
// UPDATE matches a row; the rest observe sentinel.ErrNotFound.
func (s *PostgresTransactions) SettleEscrow(ctx context.Context, correlationID domain.CorrelationID, status models.TxStatus) (*models.Transaction, error) {
	if status != models.TxCompleted && status != models.TxFailed {
		return nil, sentinel.ErrInvalidState
	}
	query := `
		UPDATE ledger_transactions
		SET status = $3
		WHERE correlation_id = $1 AND status = $2
		RETURNING ` + transactionColumns + `
	`
	row := s.db.QueryRowContext(ctx, query,
		string(correlationID),
		string(models.TxEscrowed),
		string(status),
	)
	tx, err := scanTransaction(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("settle escrow: %w", err)
	}
	return tx, nil
}

func (s *PostgresTransactions) ListByParticipant(ctx context.Context, uin domain.UIN) ([]*models.Transaction, error) {
	query := `
		SELECT ` + transactionColumns + `
		FROM ledger_transactions
		WHERE payer = $1 OR payee = $1
		ORDER BY ts DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uin.String())
	if err != nil {
		return nil, fmt.Errorf("query transactions: %w", err)
	}
	defer rows.Close()

	var transactions []*models.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		transactions = append(transactions, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transactions: %w", err)
	}
	return transactions, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var (
		tx            models.Transaction
		rawID         string
		rawPayer      string
		rawPayee      string
		kind          string
		status        string
		correlationID string
	)
	err := row.Scan(
		&rawID,
		&rawPayer,
		&rawPayee,
		&tx.Gross,
		&tx.Fee,
		&tx.Commission,
		&tx.Net,
		&tx.Currency,
		&kind,
		&status,
		&tx.Timestamp,
		&tx.Description,
		&correlationID,
	)
	if err != nil {
		return nil, err
	}

	txID, err := domain.ParseTransactionID(rawID)
	if err != nil {
		return nil, fmt.Errorf("stored transaction id: %w", err)
	}
	tx.ID = txID
	tx.Payer = domain.UIN(rawPayer)
	tx.Payee = domain.UIN(rawPayee)
	tx.Kind = models.TxKind(kind)
	tx.Status = models.TxStatus(status)
	tx.CorrelationID = domain.CorrelationID(correlationID)
	return &tx, nil
}

// PostgresBonuses persists commission bonus records in PostgreSQL.
type PostgresBonuses struct {
	db *sql.DB
}

// NewPostgresBonuses constructs a PostgreSQL-backed bonus store.
func NewPostgresBonuses(db *sql.DB) *PostgresBonuses {
	return &PostgresBonuses{db: db}
}

func (s *PostgresBonuses) AppendAll(ctx context.Context, bonuses []models.CommissionBonus) error {
	if len(bonuses) == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin bonus insert: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO commission_bonuses (recipient, transaction_id, amount, level, rate, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, bonus := range bonuses {
		_, err := tx.ExecContext(ctx, query,
			bonus.Recipient.String(),
			bonus.TransactionID.String(),
			bonus.Amount,
			bonus.Level,
			bonus.Rate,
			bonus.PaidAt,
		)
		if err != nil {
			return fmt.Errorf("insert bonus: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit bonus insert: %w", err)
	}
	return nil
}

func (s *PostgresBonuses) ListByRecipient(ctx context.Context, uin domain.UIN) ([]models.CommissionBonus, error) {
	query := `
		SELECT recipient, transaction_id, amount, level, rate, paid_at
		FROM commission_bonuses
		WHERE recipient = $1
		ORDER BY paid_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query, uin.String())
	if err != nil {
		return nil, fmt.Errorf("query bonuses: %w", err)
	}
	defer rows.Close()

	var bonuses []models.CommissionBonus
	for rows.Next() {
		var (
			bonus     models.CommissionBonus
			recipient string
			rawTxID   string
		)
		err := rows.Scan(&recipient, &rawTxID, &bonus.Amount, &bonus.Level, &bonus.Rate, &bonus.PaidAt)
		if err != nil {
			return nil, fmt.Errorf("scan bonus: %w", err)
		}
		txID, err := domain.ParseTransactionID(rawTxID)
		if err != nil {
			return nil, fmt.Errorf("stored bonus transaction id: %w", err)
		}
		bonus.Recipient = domain.UIN(recipient)
		bonus.TransactionID = txID
		bonuses = append(bonuses, bonus)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bonuses: %w", err)
	}
	return bonuses, nil
}
