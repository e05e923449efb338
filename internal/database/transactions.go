package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"linkauthority-go/internal/models"
	"linkauthority-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ExchangePairParams contains the parameters for creating a linked
// spend+earn pair at request time.
type ExchangePairParams struct {
	BuyerId     string
	SellerId    string
	WebsiteId   string // the hosting website
	Points      decimal.Decimal
	SourceURL   string // the buyer's promoted page
	TargetURL   string // the hosting website's URL
	AnchorText  string
	Description string
	ExpiresAt   *time.Time
}

// RecordParams contains the parameters for appending a single ledger row
// outside an exchange pair (signup bonus, administrative adjustment).
type RecordParams struct {
	UserId    string
	Type      string
	Points    decimal.Decimal
	Status    string
	Reference string
}

// CreateExchangePair atomically executes a link request: the buyer's balance
// is checked and debited, the seller credited, and the paired pending
// spend+earn rows inserted, all in one database transaction. Both succeed
// or both are rolled back; a failed balance check leaves zero side effects.
//
// When balances are managed externally (Formance backend) only the rows are
// written; the caller performs the transfer first and compensates on error.
func (s *Service) CreateExchangePair(ctx context.Context, params ExchangePairParams) (*models.Transaction, *models.Transaction, error) {
	zap.L().Info("Creating exchange pair",
		zap.String("buyer", params.BuyerId),
		zap.String("seller", params.SellerId),
		zap.String("website_id", params.WebsiteId),
		zap.String("points", params.Points.String()))

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	spendId := uuid.New().String()
	earnId := uuid.New().String()

	if s.manageBalances {
		if _, err := s.applyDeltaTx(ctx, tx, params.BuyerId, params.Points.Neg(), spendId, false); err != nil {
			return nil, nil, err
		}
		if _, err := s.applyDeltaTx(ctx, tx, params.SellerId, params.Points, earnId, true); err != nil {
			return nil, nil, err
		}
	}

	now := time.Now()
	spend := &models.Transaction{
		Id:            spendId,
		UserId:        params.BuyerId,
		Type:          models.TransactionTypeSpend,
		Points:        params.Points,
		SourceURL:     params.SourceURL,
		TargetURL:     params.TargetURL,
		AnchorText:    params.AnchorText,
		Description:   params.Description,
		Status:        models.TransactionStatusPending,
		WebsiteId:     params.WebsiteId,
		CounterpartId: earnId,
		ExpiresAt:     params.ExpiresAt,
		CreatedAt:     now,
		ProcessedAt:   now,
	}
	earn := &models.Transaction{
		Id:            earnId,
		UserId:        params.SellerId,
		Type:          models.TransactionTypeEarn,
		Points:        params.Points,
		SourceURL:     params.SourceURL,
		TargetURL:     params.TargetURL,
		AnchorText:    params.AnchorText,
		Description:   params.Description,
		Status:        models.TransactionStatusPending,
		WebsiteId:     params.WebsiteId,
		CounterpartId: spendId,
		ExpiresAt:     params.ExpiresAt,
		CreatedAt:     now,
		ProcessedAt:   now,
	}

	for _, t := range []*models.Transaction{spend, earn} {
		if err := insertTransactionTx(ctx, tx, t); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit exchange pair: %w", err)
	}

	zap.L().Info("Exchange pair created",
		zap.String("spend_id", spendId),
		zap.String("earn_id", earnId),
		zap.String("points", params.Points.String()))
	return spend, earn, nil
}

// RecordTransaction appends a single immutable ledger row. Points and type
// are never updated after creation.
func (s *Service) RecordTransaction(ctx context.Context, params RecordParams) (*models.Transaction, error) {
	now := time.Now()
	t := &models.Transaction{
		Id:          uuid.New().String(),
		UserId:      params.UserId,
		Type:        params.Type,
		Points:      params.Points,
		Status:      params.Status,
		Reference:   params.Reference,
		CreatedAt:   now,
		ProcessedAt: now,
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if err := insertTransactionTx(ctx, tx, t); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction record: %w", err)
	}
	return t, nil
}

// AdminAdjust applies a privileged direct balance change. The delta is
// always paired with a synthetic completed ledger row (earn for a credit,
// spend for a debit) labeled as an administrative adjustment, preserving
// replayability of the log.
func (s *Service) AdminAdjust(ctx context.Context, userId string, delta decimal.Decimal, reason string) (*models.Transaction, error) {
	txType := models.TransactionTypeEarn
	points := delta
	if delta.IsNegative() {
		txType = models.TransactionTypeSpend
		points = delta.Neg()
	}

	reference := "admin-adjust"
	if reason != "" {
		reference = "admin-adjust: " + reason
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	t := &models.Transaction{
		Id:          uuid.New().String(),
		UserId:      userId,
		Type:        txType,
		Points:      points,
		Status:      models.TransactionStatusCompleted,
		Reference:   reference,
		CreatedAt:   now,
		ProcessedAt: now,
	}
	if err := insertTransactionTx(ctx, tx, t); err != nil {
		return nil, err
	}

	if s.manageBalances {
		if _, err := s.applyDeltaTx(ctx, tx, userId, delta, t.Id, true); err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit admin adjustment: %w", err)
	}

	zap.L().Info("Admin adjustment applied",
		zap.String("user_id", userId),
		zap.String("delta", delta.String()),
		zap.String("reference", reference))
	return t, nil
}

// CompletePair settles a verified pair: both rows move pending → completed
// and the verification URL is recorded. Valid only while the spend row is
// still pending.
func (s *Service) CompletePair(ctx context.Context, spendId, verificationURL string) (*models.Transaction, *models.Transaction, error) {
	spend, err := s.GetTransaction(ctx, spendId)
	if err != nil {
		return nil, nil, err
	}
	if spend.Type != models.TransactionTypeSpend || spend.CounterpartId == "" {
		return nil, nil, fmt.Errorf("%w: %s is not a spend-side exchange transaction", store.ErrTransactionNotFound, spendId)
	}
	if spend.Status != models.TransactionStatusPending {
		return nil, nil, fmt.Errorf("%w: status is %s", store.ErrNotPending, spend.Status)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, id := range []string{spend.Id, spend.CounterpartId} {
		if err := settleTransactionTx(ctx, tx, id, models.TransactionStatusCompleted, verificationURL, now); err != nil {
			return nil, nil, err
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("failed to commit settlement: %w", err)
	}

	zap.L().Info("Exchange pair completed",
		zap.String("spend_id", spend.Id),
		zap.String("earn_id", spend.CounterpartId),
		zap.String("verification_url", verificationURL))

	spendDone, err := s.GetTransaction(ctx, spend.Id)
	if err != nil {
		return nil, nil, err
	}
	earnDone, err := s.GetTransaction(ctx, spend.CounterpartId)
	if err != nil {
		return nil, nil, err
	}
	return spendDone, earnDone, nil
}

// ExpirePair fails a stale pending pair and appends a compensating refund
// pair (buyer earns the locked points back, seller spends them back). When
// this service manages balances the refund transfer happens in the same
// database transaction; otherwise the caller transfers through the external
// ledger first.
func (s *Service) ExpirePair(ctx context.Context, spendId string) error {
	spend, err := s.GetTransaction(ctx, spendId)
	if err != nil {
		return err
	}
	if spend.Type != models.TransactionTypeSpend || spend.CounterpartId == "" {
		return fmt.Errorf("%w: %s is not a spend-side exchange transaction", store.ErrTransactionNotFound, spendId)
	}
	if spend.Status != models.TransactionStatusPending {
		return fmt.Errorf("%w: status is %s", store.ErrNotPending, spend.Status)
	}
	earn, err := s.GetTransaction(ctx, spend.CounterpartId)
	if err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	now := time.Now()
	for _, id := range []string{spend.Id, earn.Id} {
		if err := settleTransactionTx(ctx, tx, id, models.TransactionStatusFailed, "", now); err != nil {
			return err
		}
	}

	// Refund rows move points only. They never represent a hosted link, so
	// they carry no website_id; the reference keeps the linkage to the
	// failed pair.
	reference := "refund:" + spend.Id
	refundEarnId := uuid.New().String()
	refundSpendId := uuid.New().String()
	refundEarn := &models.Transaction{
		Id:            refundEarnId,
		UserId:        spend.UserId, // the buyer gets the points back
		Type:          models.TransactionTypeEarn,
		Points:        spend.Points,
		SourceURL:     spend.SourceURL,
		TargetURL:     spend.TargetURL,
		Status:        models.TransactionStatusCompleted,
		CounterpartId: refundSpendId,
		Reference:     reference,
		CreatedAt:     now,
		ProcessedAt:   now,
	}
	refundSpend := &models.Transaction{
		Id:            refundSpendId,
		UserId:        earn.UserId,
		Type:          models.TransactionTypeSpend,
		Points:        spend.Points,
		SourceURL:     spend.SourceURL,
		TargetURL:     spend.TargetURL,
		Status:        models.TransactionStatusCompleted,
		CounterpartId: refundEarnId,
		Reference:     reference,
		CreatedAt:     now,
		ProcessedAt:   now,
	}
	for _, t := range []*models.Transaction{refundEarn, refundSpend} {
		if err := insertTransactionTx(ctx, tx, t); err != nil {
			return err
		}
	}

	if s.manageBalances {
		if _, err := s.applyDeltaTx(ctx, tx, earn.UserId, spend.Points.Neg(), refundSpendId, true); err != nil {
			return err
		}
		if _, err := s.applyDeltaTx(ctx, tx, spend.UserId, spend.Points, refundEarnId, true); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit expiry: %w", err)
	}

	zap.L().Info("Expired pending pair refunded",
		zap.String("spend_id", spend.Id),
		zap.String("buyer", spend.UserId),
		zap.String("seller", earn.UserId),
		zap.String("points", spend.Points.String()))
	return nil
}

// GetTransaction retrieves a single ledger row by id.
func (s *Service) GetTransaction(ctx context.Context, id string) (*models.Transaction, error) {
	row := s.db.QueryRowContext(ctx, queryGetTransactionById, id)
	t, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", store.ErrTransactionNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("unable to query transaction: %w", err)
	}
	return t, nil
}

// ListExpiredPendingSpends returns the spend sides of pending pairs whose
// expiry has passed, oldest first.
func (s *Service) ListExpiredPendingSpends(ctx context.Context, now time.Time) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, queryListExpiredPendingSpends, now)
	if err != nil {
		return nil, fmt.Errorf("unable to query expired pending spends: %w", err)
	}
	defer closeRows(rows)

	return collectTransactions(rows)
}

// GetTransactionHistory returns a user's ledger rows, newest first.
func (s *Service) GetTransactionHistory(ctx context.Context, userId string, limit, offset int) ([]models.Transaction, error) {
	rows, err := s.db.QueryContext(ctx, queryGetTransactionHistory, userId, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("unable to query transaction history: %w", err)
	}
	defer closeRows(rows)

	return collectTransactions(rows)
}

// GetHostedLinks returns the links a website currently hosts (completed earn
// rows), newest first, in the fixed widget contract shape.
func (s *Service) GetHostedLinks(ctx context.Context, websiteId string) ([]models.WidgetLink, error) {
	rows, err := s.db.QueryContext(ctx, queryGetHostedLinks, websiteId)
	if err != nil {
		return nil, fmt.Errorf("unable to query hosted links: %w", err)
	}
	defer closeRows(rows)

	var links []models.WidgetLink
	for rows.Next() {
		var l models.WidgetLink
		if err := rows.Scan(&l.URL, &l.Text, &l.Description); err != nil {
			return nil, fmt.Errorf("unable to scan hosted link: %w", err)
		}
		links = append(links, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating hosted links: %w", err)
	}
	return links, nil
}

// ReplayBalance reconstructs a user's balance from the transaction log:
// the signed sum of every row, from the signup bonus onward. Failed pairs
// net out against their refund rows.
func (s *Service) ReplayBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	var sumStr string
	if err := s.db.QueryRowContext(ctx, queryReplayBalance, userId).Scan(&sumStr); err != nil {
		return decimal.Zero, fmt.Errorf("failed to replay balance: %w", err)
	}
	sum, err := decimal.NewFromString(sumStr)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to parse replayed balance %q: %w", sumStr, err)
	}
	return sum, nil
}

// ReconcileBalance verifies that the hot balance matches a full replay of
// the transaction log.
func (s *Service) ReconcileBalance(ctx context.Context, userId string) error {
	current, err := s.GetBalance(ctx, userId)
	if err != nil {
		return fmt.Errorf("failed to get current balance: %w", err)
	}
	replayed, err := s.ReplayBalance(ctx, userId)
	if err != nil {
		return err
	}

	if !current.Equal(replayed) {
		zap.L().Error("Balance reconciliation failed",
			zap.String("user_id", userId),
			zap.String("current_balance", current.String()),
			zap.String("replayed_balance", replayed.String()),
			zap.String("difference", current.Sub(replayed).String()))
		return fmt.Errorf("balance mismatch: current=%s, replayed=%s", current.String(), replayed.String())
	}

	zap.L().Info("Balance reconciliation successful",
		zap.String("user_id", userId),
		zap.String("balance", current.String()))
	return nil
}

// ---------- helpers ----------

func insertTransactionTx(ctx context.Context, tx *sql.Tx, t *models.Transaction) error {
	var expiresAt interface{}
	if t.ExpiresAt != nil {
		expiresAt = *t.ExpiresAt
	}
	_, err := tx.ExecContext(ctx, queryInsertTransaction,
		t.Id, t.UserId, t.Type, t.Points.String(), t.SourceURL, t.TargetURL,
		t.AnchorText, t.Description, t.Status, t.VerificationURL, t.WebsiteId,
		t.CounterpartId, t.Reference, expiresAt, t.CreatedAt, t.ProcessedAt)
	if err != nil {
		return fmt.Errorf("failed to insert transaction: %w", err)
	}
	return nil
}

func settleTransactionTx(ctx context.Context, tx *sql.Tx, id, status, verificationURL string, now time.Time) error {
	result, err := tx.ExecContext(ctx, querySettleTransaction, status, verificationURL, now, id)
	if err != nil {
		return fmt.Errorf("failed to settle transaction %s: %w", id, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s already settled", store.ErrNotPending, id)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanTransaction(row rowScanner) (*models.Transaction, error) {
	var t models.Transaction
	var pointsStr string
	var expiresAt sql.NullTime
	err := row.Scan(&t.Id, &t.UserId, &t.Type, &pointsStr, &t.SourceURL, &t.TargetURL,
		&t.AnchorText, &t.Description, &t.Status, &t.VerificationURL, &t.WebsiteId,
		&t.CounterpartId, &t.Reference, &expiresAt, &t.CreatedAt, &t.ProcessedAt)
	if err != nil {
		return nil, err
	}
	t.Points, err = decimal.NewFromString(pointsStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse points %q: %w", pointsStr, err)
	}
	if expiresAt.Valid {
		t.ExpiresAt = &expiresAt.Time
	}
	return &t, nil
}

func collectTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	var out []models.Transaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("unable to scan transaction row: %w", err)
		}
		out = append(out, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transaction rows: %w", err)
	}
	return out, nil
}

func closeRows(rows *sql.Rows) {
	if err := rows.Close(); err != nil {
		zap.L().Warn("Failed to close rows", zap.Error(err))
	}
}
