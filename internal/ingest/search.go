package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
)

// SearchResult is one article reference returned by a search collaborator.
type SearchResult struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

// complete reports whether every field the pipeline relies on is present.
func (r SearchResult) complete() bool {
	return r.Title != "" && r.OriginalLink != "" && r.Link != "" && r.Description != "" && r.PubDate != ""
}

// Searcher looks up article references for a keyword.
type Searcher interface {
	Search(ctx context.Context, keyword string) ([]SearchResult, error)
}

// NaverSearcher queries the Naver news search API.
type NaverSearcher struct {
	client       *http.Client
	baseURL      string
	clientID     string
	clientSecret string
	display      int
	sort         string
}

func NewNaverSearcher(client *http.Client, baseURL, clientID, clientSecret string, display int, sort string) *NaverSearcher {
	return &NaverSearcher{
		client:       client,
		baseURL:      baseURL,
		clientID:     clientID,
		clientSecret: clientSecret,
		display:      display,
		sort:         sort,
	}
}

type naverResponse struct {
	Total int            `json:"total"`
	Items []SearchResult `json:"items"`
}

func (s *NaverSearcher) Search(ctx context.Context, keyword string) ([]SearchResult, error) {
	q := url.Values{}
	q.Set("query", keyword)
	q.Set("display", strconv.Itoa(s.display))
	q.Set("sort", s.sort)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create search request for %q: %w", keyword, err)
	}
	req.Header.Set("X-Naver-Client-Id", s.clientID)
	req.Header.Set("X-Naver-Client-Secret", s.clientSecret)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search %q failed: %w", keyword, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("search %q returned status %d: %s", keyword, resp.StatusCode, body)
	}

	var parsed naverResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response for %q: %w", keyword, err)
	}
	return parsed.Items, nil
}
