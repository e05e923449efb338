package analyzer

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"linkauthority-go/internal/models"

	"go.uber.org/zap"
)

// HTTPAnalyzer calls an external content-analysis service. Any failure
// (network, status, malformed body) degrades to the fallback result so a
// registration never blocks on the analysis vendor.
type HTTPAnalyzer struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

func NewHTTPAnalyzer(cfg models.AnalyzerConfig) *HTTPAnalyzer {
	return &HTTPAnalyzer{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// analyzeResponse is the service's wire shape.
type analyzeResponse struct {
	DomainAuthority int    `json:"domain_authority"`
	Category        string `json:"category"`
	ServiceType     string `json:"service_type"`
	Country         string `json:"country"`
	State           string `json:"state"`
	City            string `json:"city"`
}

func (a *HTTPAnalyzer) Analyze(ctx context.Context, domain string) *Result {
	result, err := a.Refresh(ctx, domain)
	if err != nil {
		zap.L().Warn("Analysis failed, using fallback attributes",
			zap.String("domain", domain), zap.Error(err))
		return fallbackResult()
	}
	return result
}

// Refresh calls the analysis service and returns its failure unmasked.
func (a *HTTPAnalyzer) Refresh(ctx context.Context, domain string) (*Result, error) {
	endpoint := fmt.Sprintf("%s/v1/analyze?domain=%s", a.baseURL, url.QueryEscape(domain))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build analyzer request: %w", err)
	}
	if a.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+a.apiKey)
	}

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analyzer unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("analyzer returned status %d", resp.StatusCode)
	}

	var body analyzeResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode analyzer response: %w", err)
	}

	result := &Result{
		DomainAuthority: body.DomainAuthority,
		Category:        body.Category,
		ServiceType:     body.ServiceType,
		Location: models.Location{
			Country: body.Country,
			State:   body.State,
			City:    body.City,
		},
	}
	sanitize(result)

	zap.L().Info("Domain analyzed",
		zap.String("domain", domain),
		zap.Int("domain_authority", result.DomainAuthority),
		zap.String("category", result.Category))
	return result, nil
}

// sanitize clamps out-of-range fields to the fallbacks without discarding
// the rest of an otherwise usable response.
func sanitize(r *Result) {
	if r.DomainAuthority < 1 || r.DomainAuthority > 100 {
		r.DomainAuthority = FallbackAuthority
	}
	if r.Category == "" {
		r.Category = FallbackCategory
	}
	if r.ServiceType != models.ServiceTypeLocal && r.ServiceType != models.ServiceTypeWorldwide {
		r.ServiceType = FallbackServiceType
	}
}
