package analyzer

import (
	"context"

	"linkauthority-go/internal/models"
)

const (
	// FallbackAuthority is assigned when the analysis service cannot be
	// reached; an admin re-analysis can raise it later.
	FallbackAuthority = 10

	FallbackCategory    = "general"
	FallbackServiceType = models.ServiceTypeWorldwide
)

// Result holds what the content-analysis service derived for a domain.
type Result struct {
	DomainAuthority int
	Category        string
	ServiceType     string
	Location        models.Location
}

// Analyzer estimates domain authority and classifies a website's niche and
// service area.
//
// Analyze never fails a registration: on any upstream problem it returns
// conservative fallbacks and logs the cause. Refresh is for callers that
// already hold real attributes and must not overwrite them with fallbacks;
// it surfaces the upstream failure instead of degrading.
type Analyzer interface {
	Analyze(ctx context.Context, domain string) *Result
	Refresh(ctx context.Context, domain string) (*Result, error)
}

// fallbackResult is what every implementation degrades to.
func fallbackResult() *Result {
	return &Result{
		DomainAuthority: FallbackAuthority,
		Category:        FallbackCategory,
		ServiceType:     FallbackServiceType,
	}
}

// New selects the implementation from config: the deterministic stub for
// local development, the HTTP client otherwise.
func New(cfg models.AnalyzerConfig) Analyzer {
	if cfg.UseStub || cfg.BaseURL == "" {
		return NewStub()
	}
	return NewHTTPAnalyzer(cfg)
}
