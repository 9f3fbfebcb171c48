// Package crm talks to the CRM leads API one page at a time.
package crm

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mrimoveis/leadcache/internal/leads"
	"github.com/mrimoveis/leadcache/pkg/logger"
)

const (
	// DefaultBaseURL is the leads endpoint of the CRM.
	DefaultBaseURL = "https://api.supremocrm.com.br/v1/leads"
	// DefaultTimeout bounds a single page request.
	DefaultTimeout = 15 * time.Second

	pageParam       = "pagina"
	maxResponseSize = 32 << 20
)

// Fetcher fetches one page of leads. Pages are 1-based. An empty table with a nil
// error means the CRM has no records on that page.
type Fetcher interface {
	FetchPage(ctx context.Context, page int) (leads.Table, error)
}

// Config holds the CRM connection parameters.
type Config struct {
	BaseURL string
	Token   string
	Timeout time.Duration
	// HTTPClient overrides the client used for requests. Its Timeout is replaced by
	// Config.Timeout when that is set.
	HTTPClient *http.Client
}

// Client is the HTTP implementation of Fetcher.
type Client struct {
	endpoint *url.URL
	token    string
	http     *http.Client
	log      *zap.Logger
}

// NewClient validates cfg and builds a Client.
func NewClient(cfg Config) (*Client, error) {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	endpoint, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("crm: parse base url: %w", err)
	}
	if endpoint.Scheme != "http" && endpoint.Scheme != "https" {
		return nil, fmt.Errorf("crm: base url %q must be http or https", base)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	client := &http.Client{Timeout: timeout}
	if cfg.HTTPClient != nil {
		cpy := *cfg.HTTPClient
		cpy.Timeout = timeout
		client = &cpy
	}

	return &Client{
		endpoint: endpoint,
		token:    strings.TrimSpace(cfg.Token),
		http:     client,
		log:      logger.WithModule("crm"),
	}, nil
}

// FetchPage issues one GET for the page. Unknown body shapes yield an empty table and
// no error; every transport, status, and decode failure is returned as a *FetchError.
func (c *Client) FetchPage(ctx context.Context, page int) (leads.Table, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	if page < 1 {
		return leads.Table{}, &FetchError{Kind: KindRequest, Page: page, Err: errors.New("page must be >= 1")}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.pageURL(page), nil)
	if err != nil {
		return leads.Table{}, &FetchError{Kind: KindRequest, Page: page, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		return leads.Table{}, &FetchError{Kind: KindTransport, Page: page, Err: err}
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(res.Body, 64<<10))
		return leads.Table{}, &FetchError{Kind: KindStatus, Page: page, StatusCode: res.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(res.Body, maxResponseSize))
	if err != nil {
		return leads.Table{}, &FetchError{Kind: KindTransport, Page: page, StatusCode: res.StatusCode, Err: err}
	}

	decoded, err := decodePage(body)
	if err != nil {
		return leads.Table{}, &FetchError{Kind: KindDecode, Page: page, StatusCode: res.StatusCode, Err: err}
	}

	table, skipped := decoded.table()
	c.log.Debug("page fetched",
		zap.Int("page", page),
		zap.String("shape", decoded.shape.String()),
		zap.Int("records", len(table)),
		zap.Int("skipped", skipped),
		zap.Duration("duration", time.Since(start)),
	)
	if decoded.shape == shapeUnknown {
		c.log.Warn("unexpected response shape; treating page as empty", zap.Int("page", page))
	}
	return table, nil
}

func (c *Client) pageURL(page int) string {
	u := *c.endpoint
	q := u.Query()
	q.Set(pageParam, strconv.Itoa(page))
	u.RawQuery = q.Encode()
	return u.String()
}
