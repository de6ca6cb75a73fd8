// Package geo resolves caller addresses to ISO country codes over HTTP.
package geo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/netip"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/okian/facequiz/pkg/metrics"
)

// DefaultURL is a printf template taking the escaped address.
const DefaultURL = "http://ip-api.com/json/%s?fields=status,countryCode"

const (
	defaultTimeout = 2 * time.Second
	defaultRPS     = 1
	maxBodyBytes   = 4 << 10
)

// Locator resolves an address to a country code. An empty code with a nil
// error means the address is not routable and was not looked up.
type Locator interface {
	Lookup(ctx context.Context, address string) (string, error)
}

// Client queries an ip-api compatible endpoint.
type Client struct {
	httpClient  *http.Client
	urlTemplate string
	timeout     time.Duration
	limiter     *rate.Limiter
}

type lookupResponse struct {
	Status      string `json:"status"`
	CountryCode string `json:"countryCode"`
}

// NewClient creates a lookup client.
func NewClient(opts ...Option) *Client {
	c := &Client{
		httpClient:  &http.Client{},
		urlTemplate: DefaultURL,
		timeout:     defaultTimeout,
		limiter:     rate.NewLimiter(rate.Limit(defaultRPS), defaultRPS),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Lookup returns the country code for address. Private, loopback and
// unparsable addresses are skipped. Lookups over the rate limit fail fast
// with ErrRateLimited instead of waiting.
func (c *Client) Lookup(ctx context.Context, address string) (string, error) {
	if !Routable(address) {
		metrics.RecordGeoLookup("skipped")
		return "", nil
	}
	if !c.limiter.Allow() {
		metrics.RecordGeoLookup("limited")
		return "", ErrRateLimited
	}

	code, err := c.fetch(ctx, address)
	if err != nil {
		metrics.RecordGeoLookup("failed")
		return "", err
	}
	metrics.RecordGeoLookup("ok")
	return code, nil
}

func (c *Client) fetch(ctx context.Context, address string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(c.urlTemplate, url.PathEscape(address)), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrLookupFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrLookupFailed, resp.StatusCode)
	}
	var body lookupResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxBodyBytes)).Decode(&body); err != nil {
		return "", fmt.Errorf("%w: decode: %v", ErrLookupFailed, err)
	}
	if body.Status != "success" {
		return "", fmt.Errorf("%w: status %q", ErrLookupFailed, body.Status)
	}
	code := strings.ToUpper(strings.TrimSpace(body.CountryCode))
	if len(code) != 2 {
		return "", fmt.Errorf("%w: bad country code %q", ErrLookupFailed, body.CountryCode)
	}
	return code, nil
}

// Routable reports whether address is a public unicast IP worth looking up.
func Routable(address string) bool {
	ip, err := netip.ParseAddr(address)
	if err != nil {
		return false
	}
	ip = ip.Unmap()
	return ip.IsGlobalUnicast() && !ip.IsPrivate()
}

// Disabled never looks anything up.
type Disabled struct{}

func (Disabled) Lookup(context.Context, string) (string, error) { return "", nil }

var (
	_ Locator = (*Client)(nil)
	_ Locator = Disabled{}
)
