package exchange

import (
	"context"
	"errors"
	"fmt"

	"linkauthority-go/internal/models"
	"linkauthority-go/internal/store"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrBalanceMismatch means a replay of the transaction log disagrees with
// the live ledger balance. It signals drift, not a caller mistake.
var ErrBalanceMismatch = errors.New("ledger balance mismatch")

// accountTagger is implemented by ledger backends that mirror user identity
// onto their accounts (the Formance backend does, SQLite does not need to).
type accountTagger interface {
	EnsureAccount(ctx context.Context, userId, name, email string) error
}

// EnsureUser resolves the authenticated identity to a local user, creating
// one with the signup bonus on first login.
func (s *Service) EnsureUser(ctx context.Context, identity *models.Identity) (*models.User, error) {
	user, err := s.db.GetUserByExternalId(ctx, identity.ExternalId)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, store.ErrUserNotFound) {
		return nil, err
	}

	userId := uuid.New().String()
	bonus := decimal.NewFromInt(models.SignupBonusPoints)

	// With an external ledger the bonus is minted there first; the SQLite
	// row insert below only records it.
	if !s.fused {
		if err := s.ledger.GrantPoints(ctx, store.GrantParams{
			UserId:    userId,
			Delta:     bonus,
			Reference: "signup-bonus:" + userId,
		}); err != nil {
			return nil, fmt.Errorf("failed to grant signup bonus: %w", err)
		}
		if tagger, ok := s.ledger.(accountTagger); ok {
			if err := tagger.EnsureAccount(ctx, userId, identity.Name, identity.Email); err != nil {
				zap.L().Warn("Failed to tag ledger account",
					zap.String("user_id", userId), zap.Error(err))
			}
		}
	}

	user, err = s.db.CreateUserWithBonus(ctx, &models.User{
		Id:         userId,
		ExternalId: identity.ExternalId,
		Name:       identity.Name,
		Email:      identity.Email,
		Role:       identity.Role,
	}, bonus)
	if err != nil {
		return nil, err
	}

	zap.L().Info("User onboarded",
		zap.String("user_id", user.Id),
		zap.String("email", user.Email),
		zap.String("role", user.Role))
	return user, nil
}

// Balance returns the user's current points from the active ledger backend.
func (s *Service) Balance(ctx context.Context, userId string) (decimal.Decimal, error) {
	return s.ledger.GetBalance(ctx, userId)
}

// History returns a page of the user's transaction log, newest first.
func (s *Service) History(ctx context.Context, userId string, limit, offset int) ([]models.TransactionRecord, error) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	txs, err := s.db.GetTransactionHistory(ctx, userId, limit, offset)
	if err != nil {
		return nil, err
	}

	records := make([]models.TransactionRecord, len(txs))
	for i, tx := range txs {
		records[i] = models.TransactionRecord{
			Id:              tx.Id,
			Type:            tx.Type,
			Points:          tx.Points,
			SourceURL:       tx.SourceURL,
			TargetURL:       tx.TargetURL,
			Status:          tx.Status,
			VerificationURL: tx.VerificationURL,
			Reference:       tx.Reference,
			ExpiresAt:       tx.ExpiresAt,
			CreatedAt:       tx.CreatedAt,
			ProcessedAt:     tx.ProcessedAt,
		}
	}
	return records, nil
}

// AdminAdjust applies a privileged balance change with an audit row. The
// delta may take the balance negative.
func (s *Service) AdminAdjust(ctx context.Context, userId string, delta int64, reason string) (*models.Transaction, error) {
	if _, err := s.db.GetUserById(ctx, userId); err != nil {
		return nil, err
	}

	d := decimal.NewFromInt(delta)
	if !s.fused {
		reference := "admin-adjust:" + uuid.New().String()
		if err := s.ledger.GrantPoints(ctx, store.GrantParams{
			UserId:    userId,
			Delta:     d,
			Reference: reference,
		}); err != nil {
			return nil, err
		}
	}
	return s.db.AdminAdjust(ctx, userId, d, reason)
}

// Reconcile checks that the active ledger's balance matches a replay of the
// transaction log.
func (s *Service) Reconcile(ctx context.Context, userId string) error {
	current, err := s.ledger.GetBalance(ctx, userId)
	if err != nil {
		return err
	}
	replayed, err := s.db.ReplayBalance(ctx, userId)
	if err != nil {
		return err
	}
	if !current.Equal(replayed) {
		return fmt.Errorf("%w for %s: ledger=%s, replayed=%s",
			ErrBalanceMismatch, userId, current.String(), replayed.String())
	}
	return nil
}
