// Package classifier decides whether a transaction is a mint action.
//
// The explorer API does not expose the semantic action of a transaction, so
// the classifier scrapes the transaction detail page for the label the
// explorer renders in its action summary. With fast-path caching enabled the
// verdict is remembered per method selector and later transactions calling
// the same method skip the page fetch.
package classifier

import (
	"bytes"
	"context"
	"log/slog"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/vietddude/mintwatch/internal/core/domain"
	"github.com/vietddude/mintwatch/internal/indexing/metrics"
)

// Verdict is the outcome of a classification.
type Verdict int

const (
	// VerdictUnknown means the detail page could not be fetched or read.
	VerdictUnknown Verdict = iota
	VerdictMint
	VerdictNotMint
)

func (v Verdict) String() string {
	switch v {
	case VerdictMint:
		return "mint"
	case VerdictNotMint:
		return "not_mint"
	default:
		return "unknown"
	}
}

// PageFetcher downloads a transaction detail page.
type PageFetcher interface {
	FetchTxPage(ctx context.Context, hash string) ([]byte, error)
}

// Marker locates the mint label inside a detail page.
type Marker struct {
	Selector string `yaml:"selector"` // CSS selector of candidate elements; empty = whole body
	Text     string `yaml:"text"`     // exact (trimmed) text of the label
}

// DefaultMarker matches Etherscan's "Mint of" transaction action label.
var DefaultMarker = Marker{
	Selector: "span.mr-1.d-inline-block",
	Text:     "Mint of",
}

// Config holds classifier settings.
type Config struct {
	// AlwaysCheckPage disables the selector cache: every transaction is
	// classified from its detail page.
	AlwaysCheckPage bool   `yaml:"always_check_page"`
	Marker          Marker `yaml:"marker"`
}

// Classifier labels transactions as mint or not.
type Classifier struct {
	pages    PageFetcher
	cache    *Cache
	fastPath bool
	marker   Marker
	log      *slog.Logger
}

// New creates a classifier. The cache is only consulted and grown when
// AlwaysCheckPage is false.
func New(cfg Config, pages PageFetcher, cache *Cache) *Classifier {
	marker := cfg.Marker
	if marker.Text == "" {
		marker = DefaultMarker
	}
	if cache == nil {
		cache = NewCache()
	}
	return &Classifier{
		pages:    pages,
		cache:    cache,
		fastPath: !cfg.AlwaysCheckPage,
		marker:   marker,
		log:      slog.Default().With("component", "classifier"),
	}
}

// Cache returns the selector cache backing the fast path.
func (c *Classifier) Cache() *Cache {
	return c.cache
}

// Classify returns the verdict for tx.
func (c *Classifier) Classify(ctx context.Context, tx domain.Transaction) Verdict {
	selector := tx.MethodSelector()

	if c.fastPath {
		if verdict, ok := c.cache.Lookup(selector); ok {
			metrics.MethodCacheHitsTotal.WithLabelValues(verdict.String()).Inc()
			c.log.Debug("Method cache hit", "selector", selector, "verdict", verdict, "tx", tx.Hash)
			return verdict
		}
	}

	verdict := c.checkPage(ctx, tx.Hash)

	if c.fastPath && verdict != VerdictUnknown {
		c.cache.Record(selector, verdict, tx.Hash)
	}
	return verdict
}

func (c *Classifier) checkPage(ctx context.Context, hash string) Verdict {
	page, err := c.pages.FetchTxPage(ctx, hash)
	if err != nil {
		metrics.PageFetchesTotal.WithLabelValues("error").Inc()
		c.log.Warn("Failed to fetch transaction page", "tx", hash, "error", err)
		return VerdictUnknown
	}
	metrics.PageFetchesTotal.WithLabelValues("ok").Inc()

	found, err := c.containsMarker(page)
	if err != nil {
		c.log.Warn("Failed to parse transaction page", "tx", hash, "error", err)
		return VerdictUnknown
	}
	if found {
		return VerdictMint
	}
	return VerdictNotMint
}

func (c *Classifier) containsMarker(page []byte) (bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page))
	if err != nil {
		return false, err
	}

	if c.marker.Selector == "" {
		return strings.Contains(doc.Find("body").Text(), c.marker.Text), nil
	}

	found := false
	doc.Find(c.marker.Selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if strings.TrimSpace(s.Text()) == c.marker.Text {
			found = true
			return false
		}
		return true
	})
	return found, nil
}
