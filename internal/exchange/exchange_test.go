package exchange

import (
	"context"
	"errors"
	"testing"
	"time"

	"linkauthority-go/internal/database"
	"linkauthority-go/internal/models"
	"linkauthority-go/internal/notify"
	"linkauthority-go/internal/store"
	"linkauthority-go/internal/verification"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBacklinkVerifier approves or rejects every backlink claim.
type fakeBacklinkVerifier struct {
	err error
}

func (f *fakeBacklinkVerifier) VerifyBacklink(_ context.Context, pageURL, _ string) (*verification.Link, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &verification.Link{Href: pageURL, Dofollow: true}, nil
}

// eventRecorder captures webhook events instead of delivering them.
type eventRecorder struct {
	events []notify.Event
}

func (r *eventRecorder) Notify(_ context.Context, e notify.Event) {
	r.events = append(r.events, e)
}

func (r *eventRecorder) ofType(eventType string) []notify.Event {
	var out []notify.Event
	for _, e := range r.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fixture struct {
	svc      *Service
	db       *database.Service
	verifier *fakeBacklinkVerifier
	events   *eventRecorder
}

func setupExchange(t *testing.T, pendingTTL time.Duration) (*fixture, func()) {
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	}, true)
	require.NoError(t, err)

	f := &fixture{
		db:       db,
		verifier: &fakeBacklinkVerifier{},
		events:   &eventRecorder{},
	}
	f.svc = NewService(db, db, f.verifier, f.events, true, pendingTTL)
	return f, db.Close
}

func newUser(t *testing.T, db *database.Service, email string) *models.User {
	user, err := db.CreateUserWithBonus(context.Background(), &models.User{
		Id:         uuid.New().String(),
		ExternalId: "test|" + email,
		Name:       email,
		Email:      email,
		Role:       models.RoleMember,
	}, decimal.NewFromInt(models.SignupBonusPoints))
	require.NoError(t, err)
	return user
}

func newSite(t *testing.T, db *database.Service, ownerId, domain string, authority int, verified bool) *models.Website {
	w := &models.Website{
		Id:                uuid.New().String(),
		UserId:            ownerId,
		URL:               "https://" + domain,
		Domain:            domain,
		DomainAuthority:   authority,
		Category:          "technology",
		ServiceType:       models.ServiceTypeWorldwide,
		VerificationToken: uuid.New().String(),
	}
	require.NoError(t, db.CreateWebsite(context.Background(), w))
	if verified {
		require.NoError(t, db.MarkVerified(context.Background(), w.Id, models.VerificationMethodFile))
	}
	return w
}

func TestEnsureUser(t *testing.T) {
	f, cleanup := setupExchange(t, 0)
	defer cleanup()

	ctx := context.Background()
	identity := &models.Identity{
		ExternalId: "auth0|abc",
		Email:      "alice@example.com",
		Name:       "Alice",
		Role:       models.RoleMember,
	}

	user, err := f.svc.EnsureUser(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, "alice@example.com", user.Email)

	balance, err := f.svc.Balance(ctx, user.Id)
	require.NoError(t, err)
	assert.True(t, balance.Equal(decimal.NewFromInt(models.SignupBonusPoints)))

	// Second login resolves to the same user, no second bonus
	again, err := f.svc.EnsureUser(ctx, identity)
	require.NoError(t, err)
	assert.Equal(t, user.Id, again.Id)

	balance, _ = f.svc.Balance(ctx, user.Id)
	assert.True(t, balance.Equal(decimal.NewFromInt(models.SignupBonusPoints)))
}

func TestMarketplace_Visibility(t *testing.T) {
	f, cleanup := setupExchange(t, 0)
	defer cleanup()

	ctx := context.Background()
	viewer := newUser(t, f.db, "viewer@example.com")
	seller := newUser(t, f.db, "seller@example.com")
	broke := newUser(t, f.db, "broke@example.com")

	newSite(t, f.db, viewer.Id, "mine.example.com", 50, true)       // own site: hidden
	listed := newSite(t, f.db, seller.Id, "seller.example.com", 70, true)
	newSite(t, f.db, seller.Id, "unverified.example.com", 90, false) // unverified: hidden
	newSite(t, f.db, broke.Id, "broke.example.com", 60, true)

	// Drain the broke seller below one point
	_, err := f.svc.AdminAdjust(ctx, broke.Id, -int64(models.SignupBonusPoints), "test drain")
	require.NoError(t, err)

	sites, err := f.svc.Marketplace(ctx, viewer.Id, "", "")
	require.NoError(t, err)
	require.Len(t, sites, 1)
	assert.Equal(t, listed.Id, sites[0].Id)
	assert.Equal(t, 70, sites[0].DomainAuthority)
}

func TestMarketplace_Filters(t *testing.T) {
	f, cleanup := setupExchange(t, 0)
	defer cleanup()

	ctx := context.Background()
	viewer := newUser(t, f.db, "viewer@example.com")
	seller := newUser(t, f.db, "seller@example.com")
	newSite(t, f.db, seller.Id, "tech.example.com", 70, true)

	sites, err := f.svc.Marketplace(ctx, viewer.Id, "travel", "")
	require.NoError(t, err)
	assert.Empty(t, sites)

	sites, err = f.svc.Marketplace(ctx, viewer.Id, "technology", models.ServiceTypeWorldwide)
	require.NoError(t, err)
	assert.Len(t, sites, 1)
}

func TestRequestLink(t *testing.T) {
	f, cleanup := setupExchange(t, 14*24*time.Hour)
	defer cleanup()

	ctx := context.Background()
	buyer := newUser(t, f.db, "buyer@example.com")
	seller := newUser(t, f.db, "seller@example.com")
	newSite(t, f.db, buyer.Id, "buyer.example.com", 30, true)
	target := newSite(t, f.db, seller.Id, "seller.example.com", 70, true)

	spend, err := f.svc.RequestLink(ctx, buyer.Id, &models.LinkRequest{
		WebsiteId:  target.Id,
		SourceURL:  "https://buyer.example.com/post",
		AnchorText: "my post",
	})
	require.NoError(t, err)

	// Price is the hosting site's authority; the pair is pending with a deadline
	assert.True(t, spend.Points.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, models.TransactionStatusPending, spend.Status)
	require.NotNil(t, spend.ExpiresAt)
	assert.True(t, spend.ExpiresAt.After(time.Now()))

	// Points moved at request time
	buyerBalance, _ := f.svc.Balance(ctx, buyer.Id)
	assert.True(t, buyerBalance.Equal(decimal.NewFromInt(30)))
	sellerBalance, _ := f.svc.Balance(ctx, seller.Id)
	assert.True(t, sellerBalance.Equal(decimal.NewFromInt(170)))

	require.Len(t, f.events.ofType(notify.EventExchangeRequested), 1)
}

func TestRequestLink_NoRegisteredWebsite(t *testing.T) {
	f, cleanup := setupExchange(t, 0)
	defer cleanup()

	ctx := context.Background()
	buyer := newUser(t, f.db, "buyer@example.com")
	seller := newUser(t, f.db, "seller@example.com")
	target := newSite(t, f.db, seller.Id, "seller.example.com", 70, true)

	_, err := f.svc.RequestLink(ctx, buyer.Id, &models.LinkRequest{
		WebsiteId: target.Id,
		SourceURL: "https://buyer.example.com/post",
	})
	assert.ErrorIs(t, err, store.ErrNoWebsites)

	// A registered-but-unverified site is enough skin in the game to buy
	newSite(t, f.db, buyer.Id, "buyer.example.com", 30, false)
	_, err = f.svc.RequestLink(ctx, buyer.Id, &models.LinkRequest{
		WebsiteId: target.Id,
		SourceURL: "https://buyer.example.com/post",
	})
	require.NoError(t, err)
}

func TestRequestLink_OwnWebsite(t *testing.T) {
	f, cleanup := setupExchange(t, 0)
	defer cleanup()

	ctx := context.Background()
	buyer := newUser(t, f.db, "buyer@example.com")
	own := newSite(t, f.db, buyer.Id, "buyer.example.com", 30, true)

	_, err := f.svc.RequestLink(ctx, buyer.Id, &models.LinkRequest{
		WebsiteId: own.Id,
		SourceURL: "https://buyer.example.com/post",
	})
	assert.Error(t, err)
}

func TestRequestLink_InsufficientPoints(t *testing.T) {
	f, cleanup := setupExchange(t, 0)
	defer cleanup()

	ctx := context.Background()
	buyer := newUser(t, f.db, "buyer@example.com")
	seller := newUser(t, f.db, "seller@example.com")
	newSite(t, f.db, buyer.Id, "buyer.example.com", 30, true)
	target := newSite(t, f.db, seller.Id, "seller.example.com", 70, true)

	// Drain the buyer below the 70-point price
	_, err := f.svc.AdminAdjust(ctx, buyer.Id, -80, "test drain")
	require.NoError(t, err)

	_, err = f.svc.RequestLink(ctx, buyer.Id, &models.LinkRequest{
		WebsiteId: target.Id,
		SourceURL: "https://buyer.example.com/post",
	})
	assert.ErrorIs(t, err, store.ErrInsufficientPoints)

	// No side effects
	balance, _ := f.svc.Balance(ctx, buyer.Id)
	assert.True(t, balance.Equal(decimal.NewFromInt(20)))
}

func TestSubmitVerification(t *testing.T) {
	f, cleanup := setupExchange(t, 14*24*time.Hour)
	defer cleanup()

	ctx := context.Background()
	buyer := newUser(t, f.db, "buyer@example.com")
	seller := newUser(t, f.db, "seller@example.com")
	newSite(t, f.db, buyer.Id, "buyer.example.com", 30, true)
	target := newSite(t, f.db, seller.Id, "seller.example.com", 70, true)

	spend, err := f.svc.RequestLink(ctx, buyer.Id, &models.LinkRequest{
		WebsiteId:  target.Id,
		SourceURL:  "https://buyer.example.com/post",
		AnchorText: "my post",
	})
	require.NoError(t, err)

	settled, err := f.svc.SubmitVerification(ctx, buyer.Id, spend.Id, "https://seller.example.com/partners")
	require.NoError(t, err)
	assert.Equal(t, models.TransactionStatusCompleted, settled.Status)
	assert.Equal(t, "https://seller.example.com/partners", settled.VerificationURL)

	require.Len(t, f.events.ofType(notify.EventExchangeCompleted), 1)

	// Both sides reconcile after settlement
	require.NoError(t, f.svc.Reconcile(ctx, buyer.Id))
	require.NoError(t, f.svc.Reconcile(ctx, seller.Id))
}

func TestSubmitVerification_WrongDomain(t *testing.T) {
	f, cleanup := setupExchange(t, 0)
	defer cleanup()

	ctx := context.Background()
	buyer := newUser(t, f.db, "buyer@example.com")
	seller := newUser(t, f.db, "seller@example.com")
	newSite(t, f.db, buyer.Id, "buyer.example.com", 30, true)
	target := newSite(t, f.db, seller.Id, "seller.example.com", 70, true)

	spend, err := f.svc.RequestLink(ctx, buyer.Id, &models.LinkRequest{
		WebsiteId: target.Id,
		SourceURL: "https://buyer.example.com/post",
	})
	require.NoError(t, err)

	// Page on an unrelated domain is rejected before any fetch
	_, err = f.svc.SubmitVerification(ctx, buyer.Id, spend.Id, "https://evil.example.org/partners")
	assert.Error(t, err)

	got, _ := f.db.GetTransaction(ctx, spend.Id)
	assert.Equal(t, models.TransactionStatusPending, got.Status)
}

func TestSubmitVerification_NotOwner(t *testing.T) {
	f, cleanup := setupExchange(t, 0)
	defer cleanup()

	ctx := context.Background()
	buyer := newUser(t, f.db, "buyer@example.com")
	seller := newUser(t, f.db, "seller@example.com")
	newSite(t, f.db, buyer.Id, "buyer.example.com", 30, true)
	target := newSite(t, f.db, seller.Id, "seller.example.com", 70, true)

	spend, err := f.svc.RequestLink(ctx, buyer.Id, &models.LinkRequest{
		WebsiteId: target.Id,
		SourceURL: "https://buyer.example.com/post",
	})
	require.NoError(t, err)

	_, err = f.svc.SubmitVerification(ctx, seller.Id, spend.Id, "https://seller.example.com/partners")
	assert.ErrorIs(t, err, store.ErrNotOwner)
}

func TestSubmitVerification_ScanFails(t *testing.T) {
	f, cleanup := setupExchange(t, 0)
	defer cleanup()

	ctx := context.Background()
	buyer := newUser(t, f.db, "buyer@example.com")
	seller := newUser(t, f.db, "seller@example.com")
	newSite(t, f.db, buyer.Id, "buyer.example.com", 30, true)
	target := newSite(t, f.db, seller.Id, "seller.example.com", 70, true)

	spend, err := f.svc.RequestLink(ctx, buyer.Id, &models.LinkRequest{
		WebsiteId: target.Id,
		SourceURL: "https://buyer.example.com/post",
	})
	require.NoError(t, err)

	f.verifier.err = errors.New("no dofollow link found")
	_, err = f.svc.SubmitVerification(ctx, buyer.Id, spend.Id, "https://seller.example.com/partners")
	require.Error(t, err)

	// The pair stays pending; the buyer can fix the page and retry
	got, _ := f.db.GetTransaction(ctx, spend.Id)
	assert.Equal(t, models.TransactionStatusPending, got.Status)
}

func TestExpireStale(t *testing.T) {
	// A millisecond TTL makes the pair expire effectively immediately
	f, cleanup := setupExchange(t, time.Millisecond)
	defer cleanup()

	ctx := context.Background()
	buyer := newUser(t, f.db, "buyer@example.com")
	seller := newUser(t, f.db, "seller@example.com")
	newSite(t, f.db, buyer.Id, "buyer.example.com", 30, true)
	target := newSite(t, f.db, seller.Id, "seller.example.com", 70, true)

	spend, err := f.svc.RequestLink(ctx, buyer.Id, &models.LinkRequest{
		WebsiteId: target.Id,
		SourceURL: "https://buyer.example.com/post",
	})
	require.NoError(t, err)

	expired, err := f.svc.ExpireStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, expired)

	got, _ := f.db.GetTransaction(ctx, spend.Id)
	assert.Equal(t, models.TransactionStatusFailed, got.Status)

	// Locked points came back
	balance, _ := f.svc.Balance(ctx, buyer.Id)
	assert.True(t, balance.Equal(decimal.NewFromInt(models.SignupBonusPoints)))

	require.Len(t, f.events.ofType(notify.EventExchangeExpired), 1)

	// A second sweep finds nothing
	expired, err = f.svc.ExpireStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, expired)

	require.NoError(t, f.svc.Reconcile(ctx, buyer.Id))
	require.NoError(t, f.svc.Reconcile(ctx, seller.Id))
}

func TestWidgetLinks(t *testing.T) {
	f, cleanup := setupExchange(t, 0)
	defer cleanup()

	ctx := context.Background()
	buyer := newUser(t, f.db, "buyer@example.com")
	seller := newUser(t, f.db, "seller@example.com")
	newSite(t, f.db, buyer.Id, "buyer.example.com", 30, true)
	target := newSite(t, f.db, seller.Id, "seller.example.com", 70, true)

	spend, err := f.svc.RequestLink(ctx, buyer.Id, &models.LinkRequest{
		WebsiteId:   target.Id,
		SourceURL:   "https://buyer.example.com/post",
		AnchorText:  "my post",
		Description: "a fine read",
	})
	require.NoError(t, err)

	// Nothing shows while pending
	links, err := f.svc.WidgetLinks(ctx, target.Id)
	require.NoError(t, err)
	assert.Empty(t, links)

	_, err = f.svc.SubmitVerification(ctx, buyer.Id, spend.Id, "https://seller.example.com/partners")
	require.NoError(t, err)

	links, err = f.svc.WidgetLinks(ctx, target.Id)
	require.NoError(t, err)
	require.Len(t, links, 1)
	assert.Equal(t, "https://buyer.example.com/post", links[0].URL)
	assert.Equal(t, "my post", links[0].Text)
	assert.Equal(t, "a fine read", links[0].Description)
}

func TestWidgetLinks_ExpiredPairNeverShows(t *testing.T) {
	f, cleanup := setupExchange(t, time.Millisecond)
	defer cleanup()

	ctx := context.Background()
	buyer := newUser(t, f.db, "buyer@example.com")
	seller := newUser(t, f.db, "seller@example.com")
	newSite(t, f.db, buyer.Id, "buyer.example.com", 30, true)
	target := newSite(t, f.db, seller.Id, "seller.example.com", 70, true)

	_, err := f.svc.RequestLink(ctx, buyer.Id, &models.LinkRequest{
		WebsiteId:  target.Id,
		SourceURL:  "https://buyer.example.com/post",
		AnchorText: "my post",
	})
	require.NoError(t, err)

	expired, err := f.svc.ExpireStale(ctx, time.Now().Add(time.Minute))
	require.NoError(t, err)
	require.Equal(t, 1, expired)

	// The refund rows are completed earns, but they are not hosted links:
	// the widget stays empty after a failed exchange.
	links, err := f.svc.WidgetLinks(ctx, target.Id)
	require.NoError(t, err)
	assert.Empty(t, links)

	require.NoError(t, f.svc.Reconcile(ctx, buyer.Id))
	require.NoError(t, f.svc.Reconcile(ctx, seller.Id))
}

func TestWidgetLinks_UnverifiedWebsite(t *testing.T) {
	f, cleanup := setupExchange(t, 0)
	defer cleanup()

	seller := newUser(t, f.db, "seller@example.com")
	w := newSite(t, f.db, seller.Id, "seller.example.com", 70, false)

	_, err := f.svc.WidgetLinks(context.Background(), w.Id)
	assert.ErrorIs(t, err, store.ErrWebsiteNotFound)
}

// scanningVerifier additionally lists every anchor on a page.
type scanningVerifier struct {
	fakeBacklinkVerifier
	links []verification.Link
}

func (s *scanningVerifier) ExtractPageLinks(_ context.Context, _ string) ([]verification.Link, error) {
	return s.links, nil
}

func TestAuditLinks(t *testing.T) {
	f, cleanup := setupExchange(t, 0)
	defer cleanup()

	ctx := context.Background()
	seller := newUser(t, f.db, "seller@example.com")
	w := newSite(t, f.db, seller.Id, "seller.example.com", 70, true)

	// The plain verifier cannot scan whole pages
	_, err := f.svc.AuditLinks(ctx, w.Id)
	require.Error(t, err)

	scanner := &scanningVerifier{links: []verification.Link{
		{Href: "https://buyer.example.com/post", Dofollow: true},
		{Href: "https://elsewhere.example.org", Rel: "nofollow"},
	}}
	svc := NewService(f.db, f.db, scanner, f.events, true, 0)

	links, err := svc.AuditLinks(ctx, w.Id)
	require.NoError(t, err)
	require.Len(t, links, 2)
	assert.True(t, links[0].Dofollow)
	assert.Equal(t, "nofollow", links[1].Rel)
}

func TestHistory(t *testing.T) {
	f, cleanup := setupExchange(t, 0)
	defer cleanup()

	ctx := context.Background()
	user := newUser(t, f.db, "user@example.com")

	records, err := f.svc.History(ctx, user.Id, 10, 0)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "signup-bonus", records[0].Reference)
	assert.Equal(t, models.TransactionTypeEarn, records[0].Type)
}

func TestAdminAdjust_UnknownUser(t *testing.T) {
	f, cleanup := setupExchange(t, 0)
	defer cleanup()

	_, err := f.svc.AdminAdjust(context.Background(), "no-such-user", 10, "oops")
	assert.ErrorIs(t, err, store.ErrUserNotFound)
}
