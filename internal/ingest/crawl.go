package ingest

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Page is what the crawler extracts from an article page.
type Page struct {
	Body     string
	ImageURL string
	Author   string
	Outlet   string
}

// complete reports whether every required field was found.
func (p *Page) complete() bool {
	return p.Body != "" && p.ImageURL != "" && p.Author != "" && p.Outlet != ""
}

// Crawler fetches an article page.
type Crawler interface {
	Fetch(ctx context.Context, link string) (*Page, error)
}

// Selectors locate article fields within a page.
type Selectors struct {
	Body      string
	Image     string
	ImageAttr string
	Author    string
	Outlet    string
	// OutletAttr reads the outlet from an attribute (e.g. a logo's alt)
	// instead of the element text when set.
	OutletAttr string
}

// HTMLCrawler extracts article fields with CSS selectors.
type HTMLCrawler struct {
	client    *http.Client
	userAgent string
	sel       Selectors
}

func NewHTMLCrawler(client *http.Client, userAgent string, sel Selectors) *HTMLCrawler {
	return &HTMLCrawler{client: client, userAgent: userAgent, sel: sel}
}

func (c *HTMLCrawler) Fetch(ctx context.Context, link string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", link, err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", link, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s returned status %d", link, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", link, err)
	}

	page := &Page{
		Body:     text(doc, c.sel.Body),
		ImageURL: attr(doc, c.sel.Image, c.sel.ImageAttr),
		Author:   text(doc, c.sel.Author),
	}
	if c.sel.OutletAttr != "" {
		page.Outlet = attr(doc, c.sel.Outlet, c.sel.OutletAttr)
	} else {
		page.Outlet = text(doc, c.sel.Outlet)
	}
	return page, nil
}

func text(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.Join(strings.Fields(doc.Find(selector).First().Text()), " ")
}

func attr(doc *goquery.Document, selector, name string) string {
	if selector == "" {
		return ""
	}
	sel := doc.Find(selector).First()
	if name == "" {
		name = "src"
	}
	v, ok := sel.Attr(name)
	if !ok && name != "src" {
		v, _ = sel.Attr("src")
	}
	return strings.TrimSpace(v)
}
