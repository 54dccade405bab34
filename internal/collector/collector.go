// Package collector scrapes 萌點 (moe trait) lists from moegirl wiki
// character pages. Pages come in several infobox generations, so
// extraction tries the new flex template first, then the legacy table,
// then a loose sibling fallback.
package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// The wiki serves a human-browser page; a default Go user agent gets a
// challenge page instead of the article.
const browserUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/131.0.0.0 Safari/537.36"

// noiseRe strips footnote markers like "[3]", parenthesized asides,
// literal ellipses, stray parens, and trailing digits from the raw
// infobox text before it is split into traits.
var noiseRe = regexp.MustCompile(`\[.*?\]|\s*\(.*?\)|\s*(?:\.\.\.|\(|\))\s*|\s*\d+\s*$`)

// CharacterProfile is one scraped character, shaped like the catalog
// data file entries. Ids are assigned later, at embedding time.
type CharacterProfile struct {
	Name       string   `json:"name"`
	MoeTraits  []string `json:"moe_traits"`
	TraitCount int      `json:"trait_count"`
}

// Collector fetches character pages sequentially with a randomized
// pause between requests so the wiki sees a polite crawl.
type Collector struct {
	BaseURL  string
	Client   *http.Client
	MinDelay time.Duration
	MaxDelay time.Duration

	logger *slog.Logger
}

func NewCollector(baseURL string, logger *slog.Logger, client ...*http.Client) *Collector {
	httpClient := &http.Client{Timeout: 30 * time.Second}
	if len(client) > 0 && client[0] != nil {
		httpClient = client[0]
	}
	return &Collector{
		BaseURL:  strings.TrimRight(baseURL, "/"),
		Client:   httpClient,
		MinDelay: 2 * time.Second,
		MaxDelay: 4 * time.Second,
		logger:   logger,
	}
}

// Collect scrapes every named character in order. A page that fails to
// fetch or yields no infobox row produces an empty trait list and the
// crawl continues; only context cancellation stops it early, returning
// the profiles gathered so far.
func (c *Collector) Collect(ctx context.Context, names []string) ([]CharacterProfile, error) {
	profiles := make([]CharacterProfile, 0, len(names))
	for i, name := range names {
		if i > 0 {
			if err := c.pause(ctx); err != nil {
				return profiles, err
			}
		}

		traits, err := c.CollectOne(ctx, name)
		if err != nil {
			if ctx.Err() != nil {
				return profiles, ctx.Err()
			}
			c.logger.Warn("character_scrape_failed",
				slog.String("name", name),
				slog.String("error", err.Error()))
			traits = []string{}
		}

		profiles = append(profiles, CharacterProfile{
			Name:       name,
			MoeTraits:  traits,
			TraitCount: len(traits),
		})
	}

	c.logger.Info("collect_completed", slog.Int("character_count", len(profiles)))
	return profiles, nil
}

// CollectOne fetches and parses a single character page. A reachable
// page without a recognizable 萌點 row is not an error; it just has no
// traits.
func (c *Collector) CollectOne(ctx context.Context, name string) ([]string, error) {
	pageURL := fmt.Sprintf("%s/zh-hk/%s", c.BaseURL, url.PathEscape(name))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", name, err)
	}
	req.Header.Set("User-Agent", browserUserAgent)

	resp, err := c.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch character page: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		return nil, fmt.Errorf("character page returned status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse character page: %w", err)
	}

	raw := ExtractRawTraits(doc)
	if raw == "" {
		c.logger.Info("moe_traits_not_found", slog.String("name", name))
		return []string{}, nil
	}
	return CleanTraits(raw), nil
}

// ExtractRawTraits finds the 萌點/萌点 infobox value and returns its
// raw text, trying the template generations from newest to oldest.
func ExtractRawTraits(doc *goquery.Document) string {
	var text string

	// 1. New flex template: the label span sits in a div whose next
	// div sibling holds the value.
	doc.Find("span:contains('萌點'), span:contains('萌点')").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		parent := s.Parent()
		if !parent.Is("div") {
			return true
		}
		if t := strings.TrimSpace(parent.NextAllFiltered("div").First().Text()); t != "" {
			text = t
			return false
		}
		return true
	})
	if text != "" {
		return text
	}

	// 2. Legacy table template: the label cell's row carries the value
	// in its second cell.
	doc.Find("td:contains('萌點'), td:contains('萌点')").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Parent().ChildrenFiltered("td").Eq(1).Text()); t != "" {
			text = t
			return false
		}
		return true
	})
	if text != "" {
		return text
	}

	// 3. Fallback: whatever element directly follows the label span.
	doc.Find("span:contains('萌點'), span:contains('萌点')").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Next().Text()); t != "" {
			text = t
			return false
		}
		return true
	})
	return text
}

// CleanTraits turns a raw infobox value into trait tokens: noise is
// stripped, then 、 "," and newlines all act as separators, and blank
// fragments are dropped.
func CleanTraits(raw string) []string {
	if raw == "" {
		return []string{}
	}
	cleaned := noiseRe.ReplaceAllString(raw, "")
	cleaned = strings.NewReplacer("、", "|", ",", "|", "\n", "|").Replace(cleaned)

	parts := strings.Split(cleaned, "|")
	traits := make([]string, 0, len(parts))
	for _, part := range parts {
		if t := strings.TrimSpace(part); t != "" {
			traits = append(traits, t)
		}
	}
	return traits
}

func (c *Collector) pause(ctx context.Context) error {
	delay := c.MinDelay
	if spread := c.MaxDelay - c.MinDelay; spread > 0 {
		delay += time.Duration(rand.Int63n(int64(spread)))
	}
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(delay):
		return nil
	}
}
