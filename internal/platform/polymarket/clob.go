package polymarket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"golang.org/x/time/rate"

	"github.com/steffenmax/arbbot/internal/domain"
)

// ClobClient is a read-only client for the public Polymarket CLOB book
// endpoint.
type ClobClient struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	now        func() time.Time
}

// NewClobClient creates a new CLOB REST client.
//
// baseURL is the CLOB API root, e.g. "https://clob.polymarket.com".
func NewClobClient(baseURL string) *ClobClient {
	return &ClobClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Limit(20), 20),
		now:     time.Now,
	}
}

// SetRateLimit caps outgoing requests at rps with the given burst.
func (c *ClobClient) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	if burst < 1 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

// SetTimeout overrides the per-request HTTP timeout.
func (c *ClobClient) SetTimeout(d time.Duration) {
	if d > 0 {
		c.httpClient.Timeout = d
	}
}

// GetBook returns the order book for an outcome token.
func (c *ClobClient) GetBook(ctx context.Context, tokenID string) (BookResponse, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return BookResponse{}, fmt.Errorf("polymarket/clob: rate limiter: %w", err)
	}

	u := c.baseURL + "/book?" + url.Values{"token_id": {tokenID}}.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return BookResponse{}, fmt.Errorf("polymarket/clob: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return BookResponse{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return BookResponse{}, fmt.Errorf("polymarket/clob: read response: %w", err)
	}
	if err := checkHTTPStatus(resp.StatusCode, body); err != nil {
		return BookResponse{}, fmt.Errorf("polymarket/clob: get book %s: %w", tokenID, err)
	}

	var book BookResponse
	if err := json.Unmarshal(body, &book); err != nil {
		return BookResponse{}, fmt.Errorf("polymarket/clob: decode book: %w", err)
	}
	return book, nil
}

// BookSource adapts the CLOB client to domain.BookSource. References are
// outcome token ids.
type BookSource struct {
	client *ClobClient
}

// NewBookSource wraps c as a book source.
func NewBookSource(c *ClobClient) *BookSource {
	return &BookSource{client: c}
}

func (s *BookSource) Venue() domain.Venue { return domain.VenuePolymarket }

// FetchBook returns the quote and ask ladder for a token. Unknown tokens and
// books without asks yield ErrMissingQuote.
func (s *BookSource) FetchBook(ctx context.Context, tokenID string) (domain.VenueBook, error) {
	resp, err := s.client.GetBook(ctx, tokenID)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.VenueBook{}, fmt.Errorf("%w: %v", domain.ErrMissingQuote, err)
		}
		return domain.VenueBook{}, err
	}

	book, err := ToVenueBook(tokenID, resp, s.client.now())
	if err != nil {
		return domain.VenueBook{}, err
	}
	if len(book.Asks.Levels) == 0 {
		return domain.VenueBook{}, fmt.Errorf("%w: polymarket %s: no asks", domain.ErrMissingQuote, tokenID)
	}
	return book, nil
}

// ToVenueBook parses a CLOB book into a quote and an ascending ask ladder.
// The observation time is the book's own timestamp when it carries one,
// otherwise fallback.
func ToVenueBook(tokenID string, b BookResponse, fallback time.Time) (domain.VenueBook, error) {
	asks, err := parseLevels(b.Asks)
	if err != nil {
		return domain.VenueBook{}, fmt.Errorf("polymarket: %s asks: %w", tokenID, err)
	}
	bids, err := parseLevels(b.Bids)
	if err != nil {
		return domain.VenueBook{}, fmt.Errorf("polymarket: %s bids: %w", tokenID, err)
	}
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })
	asks = mergeLevels(asks)

	observed := parseTimestamp(b.Timestamp, fallback)
	quote := domain.Quote{
		Venue:      domain.VenuePolymarket,
		Ref:        tokenID,
		ObservedAt: observed,
	}
	for _, lvl := range bids {
		quote.BestBid = max(quote.BestBid, lvl.Price)
	}
	if len(asks) > 0 {
		quote.BestAsk = asks[0].Price
	}

	return domain.VenueBook{
		Quote: quote,
		Asks: domain.DepthLadder{
			Venue:      domain.VenuePolymarket,
			Side:       domain.SideAsk,
			Levels:     asks,
			ObservedAt: observed,
		},
	}, nil
}

func parseLevels(in []BookLevel) ([]domain.PriceLevel, error) {
	out := make([]domain.PriceLevel, 0, len(in))
	for _, lvl := range in {
		p, err := strconv.ParseFloat(lvl.Price, 64)
		if err != nil {
			return nil, fmt.Errorf("price %q: %w", lvl.Price, err)
		}
		s, err := strconv.ParseFloat(lvl.Size, 64)
		if err != nil {
			return nil, fmt.Errorf("size %q: %w", lvl.Size, err)
		}
		if s <= 0 {
			continue
		}
		out = append(out, domain.PriceLevel{Price: p, Size: s})
	}
	return out, nil
}

// mergeLevels folds adjacent levels at the same price in a sorted ladder.
func mergeLevels(levels []domain.PriceLevel) []domain.PriceLevel {
	if len(levels) < 2 {
		return levels
	}
	out := levels[:1]
	for _, lvl := range levels[1:] {
		last := &out[len(out)-1]
		if lvl.Price == last.Price {
			last.Size += lvl.Size
			continue
		}
		out = append(out, lvl)
	}
	return out
}

// parseTimestamp accepts unix seconds, unix milliseconds or RFC 3339.
func parseTimestamp(s string, fallback time.Time) time.Time {
	if ts, err := strconv.ParseInt(s, 10, 64); err == nil {
		if ts > 1e12 {
			return time.UnixMilli(ts)
		}
		return time.Unix(ts, 0)
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t
	}
	return fallback
}

// checkHTTPStatus maps non-2xx status codes to appropriate domain errors.
func checkHTTPStatus(statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}

	bodyStr := string(body)
	switch statusCode {
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", domain.ErrNotFound, bodyStr)
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s", domain.ErrUnauthorized, bodyStr)
	case http.StatusTooManyRequests:
		return fmt.Errorf("%w: %s", domain.ErrRateLimited, bodyStr)
	default:
		return fmt.Errorf("HTTP %d: %s", statusCode, bodyStr)
	}
}
