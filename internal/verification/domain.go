package verification

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"strings"

	"linkauthority-go/internal/models"

	"go.uber.org/zap"
)

// ErrProofFailed means the proof was reachable but did not match the issued
// token. The site owner has to fix their published proof, not retry.
var ErrProofFailed = errors.New("ownership proof failed")

const (
	// WellKnownPath is where site owners publish the file-based proof.
	WellKnownPath = "/.well-known/linkauthority-verification.txt"

	// dnsRecordPrefix labels the TXT record carrying the token.
	dnsRecordPrefix = "linkauthority-verification="
)

// Verifier proves domain ownership through either the well-known file or a
// DNS TXT record, and checks published backlinks on verified sites.
type Verifier struct {
	fetcher  *Fetcher
	resolver *net.Resolver
	scheme   string // https outside of tests
}

func NewVerifier(cfg models.VerificationConfig) *Verifier {
	return &Verifier{
		fetcher:  NewFetcher(cfg),
		resolver: net.DefaultResolver,
		scheme:   "https",
	}
}

// VerifyDomainFile checks the well-known file proof: the file body must be
// byte-equal to the issued token, no trimming or whitespace forgiveness.
func (v *Verifier) VerifyDomainFile(ctx context.Context, domain, token string) error {
	url := v.scheme + "://" + domain + WellKnownPath

	body, err := v.fetcher.Fetch(ctx, url)
	if err != nil {
		zap.L().Info("File verification fetch failed",
			zap.String("domain", domain), zap.Error(err))
		return err
	}

	if !bytes.Equal(body, []byte(token)) {
		return fmt.Errorf("%w: file at %s does not match the issued token", ErrProofFailed, url)
	}

	zap.L().Info("Domain verified via well-known file", zap.String("domain", domain))
	return nil
}

// VerifyDomainDNS checks the TXT record proof: any TXT record on the domain
// of the form "linkauthority-verification=<token>" passes.
func (v *Verifier) VerifyDomainDNS(ctx context.Context, domain, token string) error {
	records, err := v.resolver.LookupTXT(ctx, domain)
	if err != nil {
		zap.L().Info("DNS verification lookup failed",
			zap.String("domain", domain), zap.Error(err))
		// Lookup failures include records that simply have not propagated
		// yet, so they come back classified and retryable, not as proof
		// mismatches.
		return classifyTransportError(domain, err)
	}

	for _, record := range records {
		value, ok := strings.CutPrefix(record, dnsRecordPrefix)
		if !ok {
			continue
		}
		if value == token {
			zap.L().Info("Domain verified via DNS TXT record", zap.String("domain", domain))
			return nil
		}
	}

	return fmt.Errorf("%w: no matching TXT record on %s (found %d TXT records)",
		ErrProofFailed, domain, len(records))
}
