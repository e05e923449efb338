/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package registry

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"linkauthority-go/internal/analyzer"
	"linkauthority-go/internal/database"
	"linkauthority-go/internal/models"
	"linkauthority-go/internal/notify"
	"linkauthority-go/internal/store"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/net/publicsuffix"
)

// DomainVerifier proves a user controls a domain.
type DomainVerifier interface {
	VerifyDomainFile(ctx context.Context, domain, token string) error
	VerifyDomainDNS(ctx context.Context, domain, token string) error
}

// Service owns the website registry: registration, attribute updates,
// ownership verification, and bulk re-analysis.
type Service struct {
	db       *database.Service
	analyzer analyzer.Analyzer
	verifier DomainVerifier
	notifier notify.Notifier
	niches   []string
}

func NewService(db *database.Service, a analyzer.Analyzer, v DomainVerifier, n notify.Notifier, niches []string) *Service {
	return &Service{db: db, analyzer: a, verifier: v, notifier: n, niches: niches}
}

// RegisterWebsite validates and registers a new website for a user. The
// domain is normalized to its registrable form (eTLD+1), analysis-derived
// attributes are filled in, and a fresh verification token is issued. The
// website starts unverified and invisible to the marketplace.
func (s *Service) RegisterWebsite(ctx context.Context, userId string, req *models.RegisterWebsiteRequest) (*models.Website, error) {
	if req.URL == "" {
		return nil, store.ErrMissingURL
	}

	rawURL, domain, err := normalizeURL(req.URL)
	if err != nil {
		return nil, err
	}

	// The analyzer prices the site; owner-declared attributes win over the
	// classifier when present.
	result := s.analyzer.Analyze(ctx, domain)

	category := result.Category
	if req.Category != "" {
		if err := s.validateNiche(req.Category); err != nil {
			return nil, err
		}
		category = req.Category
	}

	serviceType := result.ServiceType
	if req.ServiceType != "" {
		if req.ServiceType != models.ServiceTypeLocal && req.ServiceType != models.ServiceTypeWorldwide {
			return nil, fmt.Errorf("%w: invalid service type %q", store.ErrInvalidInput, req.ServiceType)
		}
		serviceType = req.ServiceType
	}

	location := result.Location
	if req.Location != nil {
		location = *req.Location
	}

	w := &models.Website{
		Id:                uuid.New().String(),
		UserId:            userId,
		URL:               rawURL,
		Domain:            domain,
		DomainAuthority:   result.DomainAuthority,
		Category:          category,
		ServiceType:       serviceType,
		Location:          location,
		VerificationToken: uuid.New().String(),
	}

	if err := s.db.CreateWebsite(ctx, w); err != nil {
		return nil, err
	}

	zap.L().Info("Website registered",
		zap.String("website_id", w.Id),
		zap.String("user_id", userId),
		zap.String("domain", domain))
	return s.db.GetWebsite(ctx, w.Id)
}

// UpdateWebsite changes the mutable attributes of a website the caller
// owns. The URL and domain authority have no update path here.
func (s *Service) UpdateWebsite(ctx context.Context, userId, websiteId string, req *models.UpdateWebsiteRequest) (*models.Website, error) {
	w, err := s.db.GetWebsite(ctx, websiteId)
	if err != nil {
		return nil, err
	}
	if w.UserId != userId {
		return nil, fmt.Errorf("%w: website %s", store.ErrNotOwner, websiteId)
	}

	category := w.Category
	if req.Category != nil {
		if err := s.validateNiche(*req.Category); err != nil {
			return nil, err
		}
		category = *req.Category
	}

	serviceType := w.ServiceType
	if req.ServiceType != nil {
		if *req.ServiceType != models.ServiceTypeLocal && *req.ServiceType != models.ServiceTypeWorldwide {
			return nil, fmt.Errorf("%w: invalid service type %q", store.ErrInvalidInput, *req.ServiceType)
		}
		serviceType = *req.ServiceType
	}

	location := w.Location
	if req.Location != nil {
		location = *req.Location
	}

	if err := s.db.UpdateWebsiteAttrs(ctx, websiteId, category, serviceType, location); err != nil {
		return nil, err
	}
	return s.db.GetWebsite(ctx, websiteId)
}

// VerifyWebsite runs the ownership proof the owner picked and, on success,
// flips the website to verified. Verification is sticky: a site verified
// once stays verified until an admin intervenes.
func (s *Service) VerifyWebsite(ctx context.Context, userId, websiteId, method string) (*models.Website, error) {
	w, err := s.db.GetWebsite(ctx, websiteId)
	if err != nil {
		return nil, err
	}
	if w.UserId != userId {
		return nil, fmt.Errorf("%w: website %s", store.ErrNotOwner, websiteId)
	}
	if w.IsVerified {
		return w, nil
	}

	switch method {
	case models.VerificationMethodFile:
		err = s.verifier.VerifyDomainFile(ctx, w.Domain, w.VerificationToken)
	case models.VerificationMethodDNS:
		err = s.verifier.VerifyDomainDNS(ctx, w.Domain, w.VerificationToken)
	default:
		return nil, fmt.Errorf("%w: unknown verification method %q", store.ErrInvalidInput, method)
	}
	if err != nil {
		return nil, err
	}

	if err := s.db.MarkVerified(ctx, websiteId, method); err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notify.Event{
		Type:      notify.EventWebsiteVerified,
		UserId:    userId,
		WebsiteId: websiteId,
	})
	return s.db.GetWebsite(ctx, websiteId)
}

// AdminVerifyWebsite marks a website verified without a proof. Admin only;
// the handler enforces the role.
func (s *Service) AdminVerifyWebsite(ctx context.Context, websiteId string) (*models.Website, error) {
	if err := s.db.MarkVerified(ctx, websiteId, models.VerificationMethodAdmin); err != nil {
		return nil, err
	}

	w, err := s.db.GetWebsite(ctx, websiteId)
	if err != nil {
		return nil, err
	}
	s.notifier.Notify(ctx, notify.Event{
		Type:      notify.EventWebsiteVerified,
		UserId:    w.UserId,
		WebsiteId: websiteId,
	})
	return w, nil
}

// ListOwn returns the caller's websites.
func (s *Service) ListOwn(ctx context.Context, userId string) ([]models.Website, error) {
	return s.db.ListWebsitesByOwner(ctx, userId)
}

// Reanalyze re-runs the analyzer over every registered website and rewrites
// the analysis-derived attributes. One bad site never aborts the batch. A
// site whose analysis fails upstream is counted as a failure and left
// untouched: re-analysis must never replace real attributes with fallbacks.
func (s *Service) Reanalyze(ctx context.Context) (*models.ReanalyzeResult, error) {
	sites, err := s.db.ListAllWebsites(ctx)
	if err != nil {
		return nil, err
	}

	result := &models.ReanalyzeResult{Total: len(sites)}
	for i := range sites {
		w := &sites[i]
		r, err := s.analyzer.Refresh(ctx, w.Domain)
		if err != nil {
			zap.L().Warn("Analysis failed, leaving website unchanged",
				zap.String("website_id", w.Id), zap.Error(err))
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", w.Domain, err))
			continue
		}
		if err := s.db.UpdateWebsiteAnalysis(ctx, w.Id, r.DomainAuthority, r.Category, r.ServiceType, r.Location); err != nil {
			zap.L().Error("Failed to update analysis",
				zap.String("website_id", w.Id), zap.Error(err))
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", w.Domain, err))
			continue
		}
		result.Succeeded++
	}

	zap.L().Info("Re-analysis finished",
		zap.Int("total", result.Total),
		zap.Int("succeeded", result.Succeeded),
		zap.Int("failed", result.Failed))
	return result, nil
}

func (s *Service) validateNiche(category string) error {
	if len(s.niches) == 0 {
		return nil
	}
	for _, n := range s.niches {
		if n == category {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", store.ErrMissingCategory, category)
}

// normalizeURL parses and canonicalizes a submitted website URL. Returns
// the cleaned URL and the registrable domain (eTLD+1) used for uniqueness
// and ownership proofs.
func normalizeURL(raw string) (string, string, error) {
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", store.ErrMissingURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return "", "", fmt.Errorf("%w: unsupported scheme %q", store.ErrMissingURL, u.Scheme)
	}
	host := strings.ToLower(u.Hostname())
	if host == "" {
		return "", "", store.ErrMissingURL
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(host)
	if err != nil {
		return "", "", fmt.Errorf("%w: %v", store.ErrMissingURL, err)
	}

	u.Host = host
	u.Fragment = ""
	return strings.TrimSuffix(u.String(), "/"), domain, nil
}
