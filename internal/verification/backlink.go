package verification

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Link is an anchor found on a scanned page.
type Link struct {
	Href       string
	AnchorText string
	Rel        string
	Dofollow   bool
}

// FindBacklink scans HTML for the first dofollow anchor pointing at
// sourceURL. An anchor counts when its href contains sourceURL and its rel
// attribute does not carry a nofollow token; the rel check is
// case-insensitive, the href match is not (URLs are compared as issued).
func FindBacklink(html []byte, sourceURL string) (*Link, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	var match *Link
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		href, _ := sel.Attr("href")
		if !strings.Contains(href, sourceURL) {
			return true
		}
		rel, _ := sel.Attr("rel")
		if isNofollow(rel) {
			return true
		}
		match = &Link{
			Href:       href,
			AnchorText: strings.TrimSpace(sel.Text()),
			Rel:        rel,
			Dofollow:   true,
		}
		return false
	})

	if match == nil {
		return nil, fmt.Errorf("%w: no dofollow link to %s found on the page", ErrProofFailed, sourceURL)
	}
	return match, nil
}

// ExtractLinks lists every anchor on a page, dofollow or not. Used by the
// admin link-audit endpoint.
func ExtractLinks(html []byte) ([]Link, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse page: %w", err)
	}

	var links []Link
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		rel, _ := sel.Attr("rel")
		links = append(links, Link{
			Href:       href,
			AnchorText: strings.TrimSpace(sel.Text()),
			Rel:        rel,
			Dofollow:   !isNofollow(rel),
		})
	})
	return links, nil
}

// VerifyBacklink fetches the claimed page and checks it carries a dofollow
// link to sourceURL.
func (v *Verifier) VerifyBacklink(ctx context.Context, pageURL, sourceURL string) (*Link, error) {
	body, err := v.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		zap.L().Info("Backlink fetch failed",
			zap.String("page_url", pageURL), zap.Error(err))
		return nil, err
	}

	link, err := FindBacklink(body, sourceURL)
	if err != nil {
		return nil, err
	}

	zap.L().Info("Backlink verified",
		zap.String("page_url", pageURL),
		zap.String("href", link.Href))
	return link, nil
}

// ExtractPageLinks fetches a page and lists its anchors.
func (v *Verifier) ExtractPageLinks(ctx context.Context, pageURL string) ([]Link, error) {
	body, err := v.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, err
	}
	return ExtractLinks(body)
}

// isNofollow reports whether a rel attribute carries the nofollow token.
// rel is a space-separated token list per the HTML spec.
func isNofollow(rel string) bool {
	for _, token := range strings.Fields(rel) {
		if strings.EqualFold(token, "nofollow") {
			return true
		}
	}
	return false
}
