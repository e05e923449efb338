package formance

import (
	"math/big"
	"testing"

	"github.com/formancehq/formance-sdk-go/v3/pkg/models/shared"
)

// ---------- Unit tests for pure helpers (no Formance stack needed) ----------

func TestUserAccount(t *testing.T) {
	if got := userAccount("abc-123"); got != "users:abc-123" {
		t.Errorf("userAccount = %q, want %q", got, "users:abc-123")
	}
}

func TestVolumeBalance_DirectBalance(t *testing.T) {
	vols := map[string]shared.V2Volume{
		pointsAsset: {Balance: big.NewInt(70)},
	}
	got := volumeBalance(vols, pointsAsset)
	if got == nil || got.Int64() != 70 {
		t.Errorf("expected 70, got %v", got)
	}
}

func TestVolumeBalance_InputMinusOutput(t *testing.T) {
	vols := map[string]shared.V2Volume{
		pointsAsset: {Input: big.NewInt(100), Output: big.NewInt(30)},
	}
	got := volumeBalance(vols, pointsAsset)
	if got == nil || got.Int64() != 70 {
		t.Errorf("expected 70, got %v", got)
	}
}

func TestVolumeBalance_MissingAsset(t *testing.T) {
	if got := volumeBalance(map[string]shared.V2Volume{}, pointsAsset); got != nil {
		t.Errorf("expected nil for missing asset, got %v", got)
	}
}

func TestIsConflictError_Nil(t *testing.T) {
	if isConflictError(nil) {
		t.Error("nil should not be a conflict error")
	}
	if isInsufficientFundError(nil) {
		t.Error("nil should not be an insufficient-fund error")
	}
	if isNotFoundError(nil) {
		t.Error("nil should not be a not-found error")
	}
}
