package formance

import (
	"context"
	"fmt"
	"math/big"

	"linkauthority-go/internal/store"

	v3 "github.com/formancehq/formance-sdk-go/v3"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ---------------------------------------------------------------------------
// Numscript templates. The transfer script uses a plain (non-overdraft) send
// so the buyer-side balance check is enforced by the ledger itself inside
// the same posting that credits the seller. All metadata is set inside the
// script so the Formance transaction is fully self-describing.
// ---------------------------------------------------------------------------

const numscriptTransfer = `vars {
  number $amount
  account $from
  account $to
  string $reference
}

send [POINTS/0 $amount] (
  source = @users:$from
  destination = @users:$to
)

set_tx_meta("event_type", "exchange_transfer")
set_tx_meta("reference", $reference)
`

const numscriptRefund = `vars {
  number $amount
  account $from
  account $to
  string $reference
}

send [POINTS/0 $amount] (
  source = @users:$from allowing unbounded overdraft
  destination = @users:$to
)

set_tx_meta("event_type", "exchange_refund")
set_tx_meta("reference", $reference)
`

const numscriptGrant = `vars {
  number $amount
  account $user
  string $reference
}

send [POINTS/0 $amount] (
  source = @world
  destination = @users:$user
)

set_tx_meta("event_type", "grant")
set_tx_meta("reference", $reference)
`

const numscriptClawback = `vars {
  number $amount
  account $user
  string $reference
}

send [POINTS/0 $amount] (
  source = @users:$user allowing unbounded overdraft
  destination = @world
)

set_tx_meta("event_type", "clawback")
set_tx_meta("reference", $reference)
`

// GetBalance returns the user's current points from the account volumes.
// An account Formance has never seen holds zero points.
func (s *Service) GetBalance(ctx context.Context, userId string) (decimal.Decimal, error) {
	addr := userAccount(userId)
	resp, err := s.client.Ledger.V2.GetAccount(ctx, operations.V2GetAccountRequest{
		Ledger:  s.ledger,
		Address: addr,
		Expand:  v3.Pointer("volumes"),
	})
	if err != nil {
		if isNotFoundError(err) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to get account %s: %w", addr, err)
	}

	if bal := volumeBalance(resp.V2AccountResponse.Data.Volumes, pointsAsset); bal != nil {
		return decimal.NewFromBigInt(bal, 0), nil
	}
	return decimal.Zero, nil
}

// TransferPoints debits the buyer and credits the seller in one posting.
// The non-overdraft send makes the ledger reject the posting when the buyer
// cannot cover it, which surfaces as ErrInsufficientPoints.
func (s *Service) TransferPoints(ctx context.Context, params store.TransferParams) error {
	err := s.runScript(ctx, numscriptTransfer, params.Reference, map[string]string{
		"amount":    params.Points.String(),
		"from":      params.FromUserId,
		"to":        params.ToUserId,
		"reference": params.Reference,
	})
	if err != nil {
		if isInsufficientFundError(err) {
			return fmt.Errorf("%w: user %s", store.ErrInsufficientPoints, params.FromUserId)
		}
		return fmt.Errorf("transfer failed: %w", err)
	}

	zap.L().Info("Points transferred in Formance",
		zap.String("from", params.FromUserId),
		zap.String("to", params.ToUserId),
		zap.String("points", params.Points.String()),
		zap.String("reference", params.Reference))
	return nil
}

// RefundPoints moves points back seller to buyer. Overdraft is allowed on
// the seller side; the marketplace visibility rule handles negative sellers
// at read time.
func (s *Service) RefundPoints(ctx context.Context, params store.TransferParams) error {
	err := s.runScript(ctx, numscriptRefund, params.Reference, map[string]string{
		"amount":    params.Points.String(),
		"from":      params.FromUserId,
		"to":        params.ToUserId,
		"reference": params.Reference,
	})
	if err != nil {
		return fmt.Errorf("refund failed: %w", err)
	}

	zap.L().Info("Points refunded in Formance",
		zap.String("from", params.FromUserId),
		zap.String("to", params.ToUserId),
		zap.String("points", params.Points.String()))
	return nil
}

// GrantPoints applies a single-sided adjustment against @world: positive
// deltas mint points into the user account, negative deltas claw them back.
func (s *Service) GrantPoints(ctx context.Context, params store.GrantParams) error {
	script := numscriptGrant
	amount := params.Delta
	if params.Delta.IsNegative() {
		script = numscriptClawback
		amount = params.Delta.Neg()
	}

	err := s.runScript(ctx, script, params.Reference, map[string]string{
		"amount":    amount.String(),
		"user":      params.UserId,
		"reference": params.Reference,
	})
	if err != nil {
		return fmt.Errorf("grant failed: %w", err)
	}

	zap.L().Info("Points granted in Formance",
		zap.String("user_id", params.UserId),
		zap.String("delta", params.Delta.String()),
		zap.String("reference", params.Reference))
	return nil
}

// runScript executes a Numscript posting with an idempotency reference.
// A CONFLICT means this reference was already posted; the operation is
// treated as already done.
func (s *Service) runScript(ctx context.Context, script, reference string, vars map[string]string) error {
	postTx := shared.V2PostTransaction{
		Script: &shared.V2PostTransactionScript{
			Plain: script,
			Vars:  vars,
		},
	}
	if reference != "" {
		postTx.Reference = v3.Pointer(reference)
	}

	_, err := s.client.Ledger.V2.CreateTransaction(ctx, operations.V2CreateTransactionRequest{
		Ledger:            s.ledger,
		V2PostTransaction: postTx,
	})
	if err != nil {
		if isConflictError(err) {
			zap.L().Info("Posting already recorded, skipping", zap.String("reference", reference))
			return nil
		}
		return err
	}
	return nil
}

// volumeBalance extracts the balance for a specific asset from volumes.
func volumeBalance(vols map[string]shared.V2Volume, asset string) *big.Int {
	vol, ok := vols[asset]
	if !ok {
		return nil
	}
	if vol.Balance != nil {
		return vol.Balance
	}
	if vol.Input == nil {
		return nil
	}
	result := new(big.Int).Set(vol.Input)
	if vol.Output != nil {
		result.Sub(result, vol.Output)
	}
	return result
}
