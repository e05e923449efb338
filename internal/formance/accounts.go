package formance

import (
	"context"
	"fmt"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/operations"
	"go.uber.org/zap"
)

// EnsureAccount tags the user's ledger account with identity metadata so
// the Formance console shows who owns each balance. SQLite remains the
// source of truth for the user record itself.
func (s *Service) EnsureAccount(ctx context.Context, userId, name, email string) error {
	addr := userAccount(userId)

	_, err := s.client.Ledger.V2.AddMetadataToAccount(ctx, operations.V2AddMetadataToAccountRequest{
		Ledger:  s.ledger,
		Address: addr,
		RequestBody: map[string]string{
			"entity_type": "end_user",
			"name":        name,
			"email":       email,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to tag user account %s: %w", addr, err)
	}

	zap.L().Debug("User account tagged in Formance",
		zap.String("address", addr), zap.String("email", email))
	return nil
}
