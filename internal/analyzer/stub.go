package analyzer

import (
	"context"
	"hash/fnv"

	"linkauthority-go/internal/models"
)

// stubCategories covers the marketplace niches the classifier knows about.
var stubCategories = []string{
	"technology", "travel", "finance", "health", "food",
	"education", "sports", "entertainment", "general",
}

// Stub is a deterministic analyzer for local development and tests: the
// same domain always gets the same attributes, derived from a hash of the
// domain name.
type Stub struct{}

func NewStub() *Stub {
	return &Stub{}
}

// Refresh never fails for the stub.
func (s *Stub) Refresh(ctx context.Context, domain string) (*Result, error) {
	return s.Analyze(ctx, domain), nil
}

func (s *Stub) Analyze(_ context.Context, domain string) *Result {
	h := fnv.New32a()
	h.Write([]byte(domain))
	sum := h.Sum32()

	serviceType := models.ServiceTypeWorldwide
	if sum%3 == 0 {
		serviceType = models.ServiceTypeLocal
	}

	return &Result{
		DomainAuthority: int(sum%100) + 1,
		Category:        stubCategories[sum%uint32(len(stubCategories))],
		ServiceType:     serviceType,
	}
}
