package verification

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"linkauthority-go/internal/models"

	"go.uber.org/zap"
)

// maxBodyBytes caps how much of a page we read. Verification targets are
// HTML documents; anything larger is cut off, not rejected.
const maxBodyBytes = 5 << 20

// FailureKind classifies why a fetch failed, so callers can distinguish
// "try again later" from "the site owner got it wrong".
type FailureKind string

const (
	FailureTimeout FailureKind = "timeout"
	FailureDNS     FailureKind = "dns"
	FailureHTTP    FailureKind = "http"
	FailureRequest FailureKind = "request"
)

// FetchError is a classified fetch failure.
type FetchError struct {
	Kind   FailureKind
	URL    string
	Status int // set for FailureHTTP
	Err    error
}

func (e *FetchError) Error() string {
	if e.Kind == FailureHTTP {
		return fmt.Sprintf("fetch %s: http status %d", e.URL, e.Status)
	}
	return fmt.Sprintf("fetch %s: %s: %v", e.URL, e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Retryable reports whether a later attempt could plausibly succeed
// without the site owner changing anything. DNS failures count: a freshly
// published record can take time to propagate.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case FailureTimeout, FailureDNS:
		return true
	case FailureHTTP:
		return e.Status >= 500
	default:
		return false
	}
}

// Fetcher retrieves pages for verification checks with a bounded timeout
// and a stable user agent, so site owners can allowlist the bot.
type Fetcher struct {
	client    *http.Client
	userAgent string
}

func NewFetcher(cfg models.VerificationConfig) *Fetcher {
	return &Fetcher{
		client:    &http.Client{Timeout: cfg.FetchTimeout},
		userAgent: cfg.UserAgent,
	}
}

// Fetch retrieves a URL and returns the (size-capped) body. Failures come
// back as *FetchError with the cause classified.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &FetchError{Kind: FailureRequest, URL: url, Err: err}
	}
	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, classifyTransportError(url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{Kind: FailureHTTP, URL: url, Status: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, classifyTransportError(url, err)
	}

	zap.L().Debug("Fetched page",
		zap.String("url", url),
		zap.Int("bytes", len(body)))
	return body, nil
}

func classifyTransportError(url string, err error) *FetchError {
	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return &FetchError{Kind: FailureDNS, URL: url, Err: err}
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return &FetchError{Kind: FailureTimeout, URL: url, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return &FetchError{Kind: FailureTimeout, URL: url, Err: err}
	}

	return &FetchError{Kind: FailureRequest, URL: url, Err: err}
}
