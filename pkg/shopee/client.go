package shopee

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the Shopee Affiliate GraphQL endpoint.
	DefaultBaseURL = "https://open-api.affiliate.shopee.com.br/graphql"
)

// ErrNotConfigured is returned by NewClient when credentials are missing.
var ErrNotConfigured = errors.New("shopee: app id and secret are required")

// Client is a minimal client for the Shopee Affiliate GraphQL API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	appID      string
	secret     string
	limiter    *rate.Limiter
	now        func() time.Time
	debug      bool
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithBaseURL points the client at another endpoint.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = u
		}
	}
}

// WithRatePerMinute caps outgoing requests. Zero or less disables the limit.
func WithRatePerMinute(n int) Option {
	return func(c *Client) {
		if n <= 0 {
			c.limiter = nil
			return
		}
		c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(n)), n)
	}
}

// WithDebug logs request and response bodies.
func WithDebug(debug bool) Option {
	return func(c *Client) { c.debug = debug }
}

// NewClient constructs a Shopee client with sane defaults.
func NewClient(appID, secret string, opts ...Option) (*Client, error) {
	if appID == "" || secret == "" {
		return nil, ErrNotConfigured
	}
	c := &Client{
		httpClient: &http.Client{Timeout: 30 * time.Second},
		baseURL:    DefaultBaseURL,
		appID:      appID,
		secret:     secret,
		now:        time.Now,
	}
	WithRatePerMinute(60)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// sign computes the request signature.
// signature = sha256(appId + timestamp + payload + secret)
func (c *Client) sign(timestamp, payload string) string {
	sum := sha256.Sum256([]byte(c.appID + timestamp + payload + c.secret))
	return hex.EncodeToString(sum[:])
}

func (c *Client) authorization(timestamp, payload string) string {
	return fmt.Sprintf("SHA256 Credential=%s, Timestamp=%s, Signature=%s", c.appID, timestamp, c.sign(timestamp, payload))
}

// SearchProducts runs productOfferV2 and returns the raw nodes.
func (c *Client) SearchProducts(ctx context.Context, keyword string, sortType, limit int) ([]map[string]interface{}, error) {
	var data struct {
		ProductOfferV2 struct {
			Nodes    []map[string]interface{} `json:"nodes"`
			PageInfo PageInfo                 `json:"pageInfo"`
		} `json:"productOfferV2"`
	}
	vars := map[string]interface{}{"keyword": keyword, "sortType": sortType, "limit": limit}
	if err := c.do(ctx, searchProductsQuery, vars, &data); err != nil {
		return nil, err
	}
	return data.ProductOfferV2.Nodes, nil
}

// SimilarProducts returns products related to itemID.
func (c *Client) SimilarProducts(ctx context.Context, itemID string) ([]map[string]interface{}, error) {
	id, err := strconv.ParseInt(strings.TrimSpace(itemID), 10, 64)
	if err != nil {
		return nil, fmt.Errorf("shopee: invalid item id %q: %w", itemID, err)
	}
	var data struct {
		SimilarProducts struct {
			Products []map[string]interface{} `json:"products"`
		} `json:"similarProducts"`
	}
	if err := c.do(ctx, similarProductsQuery, map[string]interface{}{"itemId": id}, &data); err != nil {
		return nil, err
	}
	return data.SimilarProducts.Products, nil
}

// GenerateShortLink asks the API for a tracked short link to originURL.
func (c *Client) GenerateShortLink(ctx context.Context, originURL string, subIDs []string) (string, error) {
	var data struct {
		GenerateShortLink struct {
			ShortLink string `json:"shortLink"`
		} `json:"generateShortLink"`
	}
	if subIDs == nil {
		subIDs = []string{}
	}
	vars := map[string]interface{}{"originUrl": originURL, "subIds": subIDs}
	if err := c.do(ctx, generateShortLinkQuery, vars, &data); err != nil {
		return "", err
	}
	if data.GenerateShortLink.ShortLink == "" {
		return "", errors.New("shopee: empty short link in response")
	}
	return data.GenerateShortLink.ShortLink, nil
}

// do posts a GraphQL request and decodes the data member into out. Numbers
// are decoded as json.Number so item ids keep full precision.
func (c *Client) do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("shopee: rate limit wait: %w", err)
		}
	}

	payload, err := json.Marshal(GraphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	if c.debug {
		log.Debug().
			Str("endpoint", c.baseURL).
			RawJSON("request", payload).
			Msg("[SHOPEE] Outgoing request")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	ts := strconv.FormatInt(c.now().Unix(), 10)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authorization(ts, string(payload)))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if c.debug {
		log.Debug().
			Int("status_code", resp.StatusCode).
			Int("bytes", len(respBody)).
			Msg("[SHOPEE] Incoming response")
	}

	if resp.StatusCode != http.StatusOK {
		return &APIError{StatusCode: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
	}

	var envelope GraphQLResponse
	dec := json.NewDecoder(bytes.NewReader(respBody))
	dec.UseNumber()
	if err := dec.Decode(&envelope); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if len(envelope.Errors) > 0 {
		return &APIError{StatusCode: resp.StatusCode, Message: envelope.Errors[0].Message, Code: envelope.Errors[0].Extensions.Code}
	}
	if len(envelope.Data) == 0 || string(envelope.Data) == "null" {
		return errors.New("shopee: response has no data")
	}

	dec = json.NewDecoder(bytes.NewReader(envelope.Data))
	dec.UseNumber()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("failed to decode data: %w", err)
	}
	return nil
}
