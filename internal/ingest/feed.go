package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"
)

// FeedSearcher runs keyword searches against an RSS/Atom search endpoint,
// e.g. a news aggregator's search feed. urlTemplate contains {keyword}.
type FeedSearcher struct {
	parser      *gofeed.Parser
	client      *http.Client
	urlTemplate string
	userAgent   string
}

func NewFeedSearcher(client *http.Client, urlTemplate, userAgent string) *FeedSearcher {
	parser := gofeed.NewParser()
	parser.UserAgent = userAgent
	return &FeedSearcher{
		parser:      parser,
		client:      client,
		urlTemplate: urlTemplate,
		userAgent:   userAgent,
	}
}

func (s *FeedSearcher) Search(ctx context.Context, keyword string) ([]SearchResult, error) {
	feedURL := strings.ReplaceAll(s.urlTemplate, "{keyword}", url.QueryEscape(keyword))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request for %s: %w", feedURL, err)
	}
	req.Header.Set("User-Agent", s.userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed %s: %w", feedURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed %s returned status %d", feedURL, resp.StatusCode)
	}

	feed, err := s.parser.Parse(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed %s: %w", feedURL, err)
	}

	results := make([]SearchResult, 0, len(feed.Items))
	for _, item := range feed.Items {
		pubDate := item.Published
		if item.PublishedParsed != nil {
			pubDate = item.PublishedParsed.Format(time.RFC1123Z)
		} else if item.UpdatedParsed != nil {
			pubDate = item.UpdatedParsed.Format(time.RFC1123Z)
		}
		description := item.Description
		if description == "" {
			description = item.Content
		}
		results = append(results, SearchResult{
			Title:        item.Title,
			OriginalLink: item.Link,
			Link:         item.Link,
			Description:  description,
			PubDate:      pubDate,
		})
	}
	return results, nil
}
