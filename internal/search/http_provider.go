package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/orbiterhq/deepresearch/internal/research"
	"github.com/orbiterhq/deepresearch/internal/tracing"
)

// HTTPProvider calls a web-search service over HTTP JSON. The upstream
// enforces per-second quotas, so every call passes through a token-bucket
// limiter before going out.
type HTTPProvider struct {
	baseURL string
	apiKey  string
	name    string
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// HTTPProviderConfig configures the search service client.
type HTTPProviderConfig struct {
	BaseURL           string
	APIKey            string
	Name              string
	Timeout           time.Duration
	RequestsPerSecond float64
}

// NewHTTPProvider builds a rate-limited search client. BaseURL left empty
// yields an unconfigured provider (Configured() == false).
func NewHTTPProvider(cfg HTTPProviderConfig, logger *zap.Logger) *HTTPProvider {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = 3
	}
	if cfg.Name == "" {
		cfg.Name = "websearch"
	}
	return &HTTPProvider{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		name:    cfg.Name,
		client:  &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1),
		logger:  logger,
	}
}

// Configured reports whether a service URL was supplied.
func (p *HTTPProvider) Configured() bool { return p.baseURL != "" }

type searchRequest struct {
	Query           string `json:"query"`
	DateRestriction string `json:"date_restriction,omitempty"`
	MaxResults      int    `json:"max_results,omitempty"`
}

type searchResponse struct {
	Results []struct {
		URL           string  `json:"url"`
		Title         string  `json:"title"`
		Content       string  `json:"content"`
		Snippet       string  `json:"snippet,omitempty"`
		PublishedDate string  `json:"published_date,omitempty"`
		Author        string  `json:"author,omitempty"`
		Score         float64 `json:"score,omitempty"`
	} `json:"results"`
}

// Search issues one query. The limiter blocks until the provider quota
// allows the call.
func (p *HTTPProvider) Search(ctx context.Context, query string, opts Options) ([]research.SearchResultItem, error) {
	if !p.Configured() {
		return nil, nil
	}
	if err := p.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, err := json.Marshal(searchRequest{
		Query:           query,
		DateRestriction: opts.DateRestriction,
		MaxResults:      opts.MaxResults,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal search request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/search", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create search request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}
	tracing.InjectTraceparent(ctx, req)

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search service call failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("HTTP %d from search service", resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("decode search response: %w", err)
	}

	items := make([]research.SearchResultItem, 0, len(parsed.Results))
	for _, r := range parsed.Results {
		if r.URL == "" {
			continue
		}
		items = append(items, research.SearchResultItem{
			ID:          uuid.NewString(),
			URL:         r.URL,
			Title:       r.Title,
			Content:     r.Content,
			Snippet:     r.Snippet,
			PublishedAt: r.PublishedDate,
			Author:      r.Author,
			Provider:    p.name,
			Relevance:   r.Score,
		})
	}
	p.logger.Debug("search completed",
		zap.String("query", query),
		zap.Int("results", len(items)),
	)
	return items, nil
}
