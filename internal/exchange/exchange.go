package exchange

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"linkauthority-go/internal/database"
	"linkauthority-go/internal/models"
	"linkauthority-go/internal/notify"
	"linkauthority-go/internal/store"
	"linkauthority-go/internal/verification"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Marketplace lists the websites currently open for link requests: verified,
// not owned by the viewer, and whose owner holds at least one point. The
// owner-balance rule is applied here at read time, never persisted.
func (s *Service) Marketplace(ctx context.Context, viewerId, category, serviceType string) ([]models.MarketplaceWebsite, error) {
	sites, err := s.db.ListVerifiedWebsites(ctx)
	if err != nil {
		return nil, err
	}

	eligible := map[string]bool{}
	var out []models.MarketplaceWebsite
	for _, w := range sites {
		if w.UserId == viewerId {
			continue
		}
		if category != "" && w.Category != category {
			continue
		}
		if serviceType != "" && w.ServiceType != serviceType {
			continue
		}

		ok, seen := eligible[w.UserId]
		if !seen {
			balance, err := s.ledger.GetBalance(ctx, w.UserId)
			if err != nil {
				zap.L().Warn("Skipping listing, balance lookup failed",
					zap.String("user_id", w.UserId), zap.Error(err))
				eligible[w.UserId] = false
				continue
			}
			ok = balance.GreaterThanOrEqual(decimal.NewFromInt(1))
			eligible[w.UserId] = ok
		}
		if !ok {
			continue
		}

		out = append(out, models.MarketplaceWebsite{
			Id:              w.Id,
			URL:             w.URL,
			DomainAuthority: w.DomainAuthority,
			Category:        w.Category,
			ServiceType:     w.ServiceType,
			Location:        w.Location,
		})
	}
	return out, nil
}

// RequestLink places a link request against a marketplace website. The
// price equals the hosting site's domain authority in points and moves from
// buyer to seller at request time; the pair stays pending until the buyer
// proves the backlink or the request expires.
func (s *Service) RequestLink(ctx context.Context, buyerId string, req *models.LinkRequest) (*models.Transaction, error) {
	if err := s.requireRegisteredWebsite(ctx, buyerId); err != nil {
		return nil, err
	}

	target, err := s.db.GetWebsite(ctx, req.WebsiteId)
	if err != nil {
		return nil, err
	}
	if !target.IsVerified {
		return nil, fmt.Errorf("%w: website %s is not verified", store.ErrWebsiteNotFound, target.Id)
	}
	if target.UserId == buyerId {
		return nil, fmt.Errorf("%w: cannot request a link on your own website", store.ErrInvalidInput)
	}

	price := int64(target.DomainAuthority)
	if price < 1 {
		price = 1
	}
	points := decimal.NewFromInt(price)

	var expiresAt *time.Time
	if s.pendingTTL > 0 {
		t := time.Now().Add(s.pendingTTL)
		expiresAt = &t
	}

	params := database.ExchangePairParams{
		BuyerId:     buyerId,
		SellerId:    target.UserId,
		WebsiteId:   target.Id,
		Points:      points,
		SourceURL:   req.SourceURL,
		TargetURL:   target.URL,
		AnchorText:  req.AnchorText,
		Description: req.Description,
		ExpiresAt:   expiresAt,
	}

	var spend *models.Transaction
	if s.fused {
		spend, _, err = s.db.CreateExchangePair(ctx, params)
		if err != nil {
			return nil, err
		}
	} else {
		// External ledger: post the transfer first (it enforces the
		// balance check), then record; refund if recording fails.
		reference := "exchange:" + uuid.New().String()
		transfer := store.TransferParams{
			FromUserId: buyerId,
			ToUserId:   target.UserId,
			Points:     points,
			Reference:  reference,
		}
		if err := s.ledger.TransferPoints(ctx, transfer); err != nil {
			return nil, err
		}

		spend, _, err = s.db.CreateExchangePair(ctx, params)
		if err != nil {
			compensation := store.TransferParams{
				FromUserId: target.UserId,
				ToUserId:   buyerId,
				Points:     points,
				Reference:  reference + ":compensation",
			}
			if rerr := s.ledger.RefundPoints(ctx, compensation); rerr != nil {
				zap.L().Error("Compensation refund failed, ledger and records diverged",
					zap.String("reference", reference), zap.Error(rerr))
			}
			return nil, err
		}
	}

	s.notifier.Notify(ctx, notify.Event{
		Type:          notify.EventExchangeRequested,
		UserId:        buyerId,
		TransactionId: spend.Id,
		WebsiteId:     target.Id,
		Points:        points.String(),
	})
	return spend, nil
}

// SubmitVerification checks the buyer's claimed page for a dofollow
// backlink and settles the pair on success. The page must live on the
// hosting website's domain.
func (s *Service) SubmitVerification(ctx context.Context, buyerId, transactionId, verificationURL string) (*models.Transaction, error) {
	spend, err := s.db.GetTransaction(ctx, transactionId)
	if err != nil {
		return nil, err
	}
	if spend.UserId != buyerId {
		return nil, fmt.Errorf("%w: transaction %s", store.ErrNotOwner, transactionId)
	}
	if spend.Status != models.TransactionStatusPending {
		return nil, fmt.Errorf("%w: status is %s", store.ErrNotPending, spend.Status)
	}

	target, err := s.db.GetWebsite(ctx, spend.WebsiteId)
	if err != nil {
		return nil, err
	}
	if err := requireSameDomain(verificationURL, target.Domain); err != nil {
		return nil, err
	}

	if _, err := s.verifier.VerifyBacklink(ctx, verificationURL, spend.SourceURL); err != nil {
		return nil, err
	}

	settled, _, err := s.db.CompletePair(ctx, spend.Id, verificationURL)
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, notify.Event{
		Type:          notify.EventExchangeCompleted,
		UserId:        buyerId,
		TransactionId: settled.Id,
		WebsiteId:     target.Id,
		Points:        settled.Points.String(),
	})
	return settled, nil
}

// ExpireStale fails every pending pair past its deadline and refunds the
// locked points. One bad pair never aborts the sweep; the count of expired
// pairs is returned.
func (s *Service) ExpireStale(ctx context.Context, now time.Time) (int, error) {
	stale, err := s.db.ListExpiredPendingSpends(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, spend := range stale {
		if err := s.expireOne(ctx, &spend); err != nil {
			zap.L().Error("Failed to expire pending pair",
				zap.String("spend_id", spend.Id), zap.Error(err))
			continue
		}
		expired++

		s.notifier.Notify(ctx, notify.Event{
			Type:          notify.EventExchangeExpired,
			UserId:        spend.UserId,
			TransactionId: spend.Id,
			WebsiteId:     spend.WebsiteId,
			Points:        spend.Points.String(),
		})
	}

	if len(stale) > 0 {
		zap.L().Info("Expiry sweep finished",
			zap.Int("stale", len(stale)),
			zap.Int("expired", expired))
	}
	return expired, nil
}

func (s *Service) expireOne(ctx context.Context, spend *models.Transaction) error {
	if !s.fused {
		earn, err := s.db.GetTransaction(ctx, spend.CounterpartId)
		if err != nil {
			return err
		}
		refund := store.TransferParams{
			FromUserId: earn.UserId,
			ToUserId:   spend.UserId,
			Points:     spend.Points,
			Reference:  "refund:" + spend.Id,
		}
		if err := s.ledger.RefundPoints(ctx, refund); err != nil {
			return err
		}
	}
	return s.db.ExpirePair(ctx, spend.Id)
}

// pageScanner is implemented by verifiers that can list every anchor on a
// page, not just find one backlink.
type pageScanner interface {
	ExtractPageLinks(ctx context.Context, pageURL string) ([]verification.Link, error)
}

// AuditLinks fetches a registered website's page and lists every anchor on
// it, dofollow or not. Admin tooling for spot-checking hosted links.
func (s *Service) AuditLinks(ctx context.Context, websiteId string) ([]verification.Link, error) {
	scanner, ok := s.verifier.(pageScanner)
	if !ok {
		return nil, fmt.Errorf("link audit is not supported by the configured verifier")
	}
	w, err := s.db.GetWebsite(ctx, websiteId)
	if err != nil {
		return nil, err
	}
	return scanner.ExtractPageLinks(ctx, w.URL)
}

// WidgetLinks returns the completed hosted links for a verified website, in
// the shape the public embed script consumes.
func (s *Service) WidgetLinks(ctx context.Context, websiteId string) ([]models.WidgetLink, error) {
	w, err := s.db.GetWebsite(ctx, websiteId)
	if err != nil {
		return nil, err
	}
	if !w.IsVerified {
		return nil, fmt.Errorf("%w: website %s", store.ErrWebsiteNotFound, websiteId)
	}
	return s.db.GetHostedLinks(ctx, websiteId)
}

// requireRegisteredWebsite gates buying: a user with no registered website
// of their own cannot request links. Registration is enough; the buyer's
// own site does not have to be verified to buy.
func (s *Service) requireRegisteredWebsite(ctx context.Context, userId string) error {
	count, err := s.db.CountWebsitesByOwner(ctx, userId)
	if err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("%w: user %s has no registered website", store.ErrNoWebsites, userId)
	}
	return nil
}

// requireSameDomain checks that the claimed verification page lives on the
// hosting website's registrable domain (subdomains included).
func requireSameDomain(pageURL, domain string) error {
	u, err := url.Parse(pageURL)
	if err != nil {
		return fmt.Errorf("%w: invalid verification URL: %v", store.ErrInvalidInput, err)
	}
	host := strings.ToLower(u.Hostname())
	if host == domain || strings.HasSuffix(host, "."+domain) {
		return nil
	}
	return fmt.Errorf("%w: verification URL host %q is not on domain %q", store.ErrInvalidInput, host, domain)
}
