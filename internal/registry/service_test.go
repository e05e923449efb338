package registry

import (
	"context"
	"errors"
	"testing"
	"time"

	"linkauthority-go/internal/analyzer"
	"linkauthority-go/internal/database"
	"linkauthority-go/internal/models"
	"linkauthority-go/internal/notify"
	"linkauthority-go/internal/store"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeVerifier approves or rejects every proof, and records what it saw.
type fakeVerifier struct {
	err        error
	lastDomain string
	lastToken  string
	lastMethod string
}

func (f *fakeVerifier) VerifyDomainFile(_ context.Context, domain, token string) error {
	f.lastDomain, f.lastToken, f.lastMethod = domain, token, models.VerificationMethodFile
	return f.err
}

func (f *fakeVerifier) VerifyDomainDNS(_ context.Context, domain, token string) error {
	f.lastDomain, f.lastToken, f.lastMethod = domain, token, models.VerificationMethodDNS
	return f.err
}

func setupRegistry(t *testing.T) (*Service, *database.Service, *fakeVerifier, func()) {
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	}, true)
	require.NoError(t, err)

	v := &fakeVerifier{}
	svc := NewService(db, analyzer.NewStub(), v, notify.Noop{}, []string{"technology", "travel", "general"})
	return svc, db, v, db.Close
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

func TestRegisterWebsite(t *testing.T) {
	svc, db, _, cleanup := setupRegistry(t)
	defer cleanup()

	ctx := context.Background()
	owner := newUser(t, db, "owner@example.com")

	w, err := svc.RegisterWebsite(ctx, owner.Id, &models.RegisterWebsiteRequest{
		URL:         "blog.example.com/about",
		Category:    "travel",
		ServiceType: models.ServiceTypeLocal,
	})
	require.NoError(t, err)

	assert.Equal(t, "https://blog.example.com/about", w.URL)
	assert.Equal(t, "example.com", w.Domain) // registrable domain
	assert.Equal(t, "travel", w.Category)    // owner-declared wins over classifier
	assert.Equal(t, models.ServiceTypeLocal, w.ServiceType)
	assert.False(t, w.IsVerified)
	assert.NotEmpty(t, w.VerificationToken)
	// Authority comes from the analyzer, within range
	assert.GreaterOrEqual(t, w.DomainAuthority, 0)
	assert.LessOrEqual(t, w.DomainAuthority, 100)
}

func TestRegisterWebsite_MissingURL(t *testing.T) {
	svc, db, _, cleanup := setupRegistry(t)
	defer cleanup()

	owner := newUser(t, db, "owner@example.com")
	_, err := svc.RegisterWebsite(context.Background(), owner.Id, &models.RegisterWebsiteRequest{})
	assert.ErrorIs(t, err, store.ErrMissingURL)
}

func TestRegisterWebsite_DuplicateDomain(t *testing.T) {
	svc, db, _, cleanup := setupRegistry(t)
	defer cleanup()

	ctx := context.Background()
	owner := newUser(t, db, "owner@example.com")
	other := newUser(t, db, "other@example.com")

	_, err := svc.RegisterWebsite(ctx, owner.Id, &models.RegisterWebsiteRequest{URL: "https://example.com"})
	require.NoError(t, err)

	// Different subdomain, same registrable domain
	_, err = svc.RegisterWebsite(ctx, other.Id, &models.RegisterWebsiteRequest{URL: "https://blog.example.com"})
	assert.ErrorIs(t, err, store.ErrDuplicateURL)
}

func TestRegisterWebsite_InvalidNiche(t *testing.T) {
	svc, db, _, cleanup := setupRegistry(t)
	defer cleanup()

	owner := newUser(t, db, "owner@example.com")
	_, err := svc.RegisterWebsite(context.Background(), owner.Id, &models.RegisterWebsiteRequest{
		URL:      "https://example.com",
		Category: "underwater-basket-weaving",
	})
	assert.ErrorIs(t, err, store.ErrMissingCategory)
}

func TestVerifyWebsite_File(t *testing.T) {
	svc, db, fake, cleanup := setupRegistry(t)
	defer cleanup()

	ctx := context.Background()
	owner := newUser(t, db, "owner@example.com")
	w, err := svc.RegisterWebsite(ctx, owner.Id, &models.RegisterWebsiteRequest{URL: "https://example.com"})
	require.NoError(t, err)

	verified, err := svc.VerifyWebsite(ctx, owner.Id, w.Id, models.VerificationMethodFile)
	require.NoError(t, err)

	assert.True(t, verified.IsVerified)
	assert.Equal(t, models.VerificationMethodFile, verified.VerificationMethod)
	assert.NotNil(t, verified.VerifiedAt)
	// The proof ran against the registrable domain with the issued token
	assert.Equal(t, "example.com", fake.lastDomain)
	assert.Equal(t, w.VerificationToken, fake.lastToken)
}

func TestVerifyWebsite_ProofFails(t *testing.T) {
	svc, db, fake, cleanup := setupRegistry(t)
	defer cleanup()

	ctx := context.Background()
	owner := newUser(t, db, "owner@example.com")
	w, err := svc.RegisterWebsite(ctx, owner.Id, &models.RegisterWebsiteRequest{URL: "https://example.com"})
	require.NoError(t, err)

	fake.err = errors.New("token mismatch")
	_, err = svc.VerifyWebsite(ctx, owner.Id, w.Id, models.VerificationMethodDNS)
	require.Error(t, err)

	got, err := db.GetWebsite(ctx, w.Id)
	require.NoError(t, err)
	assert.False(t, got.IsVerified)
}

func TestVerifyWebsite_NotOwner(t *testing.T) {
	svc, db, _, cleanup := setupRegistry(t)
	defer cleanup()

	ctx := context.Background()
	owner := newUser(t, db, "owner@example.com")
	intruder := newUser(t, db, "intruder@example.com")
	w, err := svc.RegisterWebsite(ctx, owner.Id, &models.RegisterWebsiteRequest{URL: "https://example.com"})
	require.NoError(t, err)

	_, err = svc.VerifyWebsite(ctx, intruder.Id, w.Id, models.VerificationMethodFile)
	assert.ErrorIs(t, err, store.ErrNotOwner)
}

func TestVerifyWebsite_AlreadyVerifiedIsSticky(t *testing.T) {
	svc, db, fake, cleanup := setupRegistry(t)
	defer cleanup()

	ctx := context.Background()
	owner := newUser(t, db, "owner@example.com")
	w, err := svc.RegisterWebsite(ctx, owner.Id, &models.RegisterWebsiteRequest{URL: "https://example.com"})
	require.NoError(t, err)

	_, err = svc.VerifyWebsite(ctx, owner.Id, w.Id, models.VerificationMethodFile)
	require.NoError(t, err)

	// A later failing proof does not un-verify
	fake.err = errors.New("site is down")
	verified, err := svc.VerifyWebsite(ctx, owner.Id, w.Id, models.VerificationMethodFile)
	require.NoError(t, err)
	assert.True(t, verified.IsVerified)
}

func TestUpdateWebsite(t *testing.T) {
	svc, db, _, cleanup := setupRegistry(t)
	defer cleanup()

	ctx := context.Background()
	owner := newUser(t, db, "owner@example.com")
	w, err := svc.RegisterWebsite(ctx, owner.Id, &models.RegisterWebsiteRequest{URL: "https://example.com"})
	require.NoError(t, err)

	category := "technology"
	updated, err := svc.UpdateWebsite(ctx, owner.Id, w.Id, &models.UpdateWebsiteRequest{
		Category: &category,
		Location: &models.Location{Country: "Belgium", City: "Ghent"},
	})
	require.NoError(t, err)
	assert.Equal(t, "technology", updated.Category)
	assert.Equal(t, "Ghent", updated.Location.City)
	assert.Equal(t, w.URL, updated.URL)

	// Non-owner cannot touch it
	intruder := newUser(t, db, "intruder@example.com")
	_, err = svc.UpdateWebsite(ctx, intruder.Id, w.Id, &models.UpdateWebsiteRequest{Category: &category})
	assert.ErrorIs(t, err, store.ErrNotOwner)
}

func TestReanalyze(t *testing.T) {
	svc, db, _, cleanup := setupRegistry(t)
	defer cleanup()

	ctx := context.Background()
	owner := newUser(t, db, "owner@example.com")
	for _, u := range []string{"https://one.example.com", "https://two.example.org"} {
		_, err := svc.RegisterWebsite(ctx, owner.Id, &models.RegisterWebsiteRequest{URL: u})
		require.NoError(t, err)
	}

	result, err := svc.Reanalyze(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 2, result.Succeeded)
	assert.Equal(t, 0, result.Failed)
}

// flakyAnalyzer keeps the stub's no-fail registration contract but fails
// refreshes for the listed domains.
type flakyAnalyzer struct {
	stub *analyzer.Stub
	down map[string]bool
}

func (f *flakyAnalyzer) Analyze(ctx context.Context, domain string) *analyzer.Result {
	return f.stub.Analyze(ctx, domain)
}

func (f *flakyAnalyzer) Refresh(ctx context.Context, domain string) (*analyzer.Result, error) {
	if f.down[domain] {
		return nil, errors.New("analyzer unreachable")
	}
	return f.stub.Refresh(ctx, domain)
}

func TestReanalyze_UpstreamFailureLeavesWebsiteUntouched(t *testing.T) {
	db, err := database.NewService(context.Background(), models.DatabaseConfig{
		Path:         ":memory:",
		MaxOpenConns: 1,
		MaxIdleConns: 1,
		PingTimeout:  5 * time.Second,
	}, true)
	require.NoError(t, err)
	defer db.Close()

	fa := &flakyAnalyzer{stub: analyzer.NewStub(), down: map[string]bool{"example.org": true}}
	svc := NewService(db, fa, &fakeVerifier{}, notify.Noop{}, nil)

	ctx := context.Background()
	owner := newUser(t, db, "owner@example.com")

	healthy, err := svc.RegisterWebsite(ctx, owner.Id, &models.RegisterWebsiteRequest{URL: "https://one.example.com"})
	require.NoError(t, err)
	broken, err := svc.RegisterWebsite(ctx, owner.Id, &models.RegisterWebsiteRequest{URL: "https://two.example.org"})
	require.NoError(t, err)

	// Give the soon-unreachable site a real authority worth protecting.
	require.NoError(t, db.UpdateWebsiteAnalysis(ctx, broken.Id, 80, "travel", models.ServiceTypeWorldwide, models.Location{}))

	result, err := svc.Reanalyze(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Total)
	assert.Equal(t, 1, result.Succeeded)
	assert.Equal(t, 1, result.Failed)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "example.org")

	// The failed site keeps its attributes; the healthy one was rewritten.
	got, err := db.GetWebsite(ctx, broken.Id)
	require.NoError(t, err)
	assert.Equal(t, 80, got.DomainAuthority)
	assert.Equal(t, "travel", got.Category)

	_, err = db.GetWebsite(ctx, healthy.Id)
	require.NoError(t, err)
}

func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		in         string
		wantURL    string
		wantDomain string
	}{
		{"example.com", "https://example.com", "example.com"},
		{"https://Blog.Example.com/Page", "https://blog.example.com/Page", "example.com"},
		{"http://example.co.uk/x/", "http://example.co.uk/x", "example.co.uk"},
	}
	for _, tt := range tests {
		gotURL, gotDomain, err := normalizeURL(tt.in)
		require.NoError(t, err, tt.in)
		assert.Equal(t, tt.wantURL, gotURL, tt.in)
		assert.Equal(t, tt.wantDomain, gotDomain, tt.in)
	}

	_, _, err := normalizeURL("ftp://example.com")
	assert.Error(t, err)
}
