package kalshi

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/steffenmax/arbbot/internal/domain"
)

// Contract side of a binary market.
const (
	SideYes = "yes"
	SideNo  = "no"
)

// ParseRef splits a registry reference of the form "TICKER[:yes|:no]". The
// side defaults to yes.
func ParseRef(ref string) (ticker, side string, err error) {
	ticker, side, found := strings.Cut(strings.TrimSpace(ref), ":")
	if !found {
		side = SideYes
	}
	side = strings.ToLower(side)
	if ticker == "" {
		return "", "", fmt.Errorf("kalshi: empty ticker in ref %q", ref)
	}
	if side != SideYes && side != SideNo {
		return "", "", fmt.Errorf("kalshi: unknown side %q in ref %q", side, ref)
	}
	return strings.ToUpper(ticker), side, nil
}

// BookSource adapts the client to domain.BookSource.
type BookSource struct {
	client *Client
}

// NewBookSource wraps c as a book source.
func NewBookSource(c *Client) *BookSource {
	return &BookSource{client: c}
}

func (s *BookSource) Venue() domain.Venue { return domain.VenueKalshi }

// FetchBook returns the quote and ask ladder for the contract named by ref.
// Markets that are not open, or that have no offers on the requested side,
// yield ErrMissingQuote.
func (s *BookSource) FetchBook(ctx context.Context, ref string) (domain.VenueBook, error) {
	ticker, side, err := ParseRef(ref)
	if err != nil {
		return domain.VenueBook{}, err
	}

	market, err := s.client.GetMarket(ctx, ticker)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return domain.VenueBook{}, fmt.Errorf("%w: %v", domain.ErrMissingQuote, err)
		}
		return domain.VenueBook{}, err
	}
	if !market.Tradable() {
		return domain.VenueBook{}, fmt.Errorf("%w: kalshi %s status %q", domain.ErrMissingQuote, ticker, market.Status)
	}

	ob, err := s.client.GetOrderbook(ctx, ticker)
	if err != nil {
		return domain.VenueBook{}, err
	}

	book := ToVenueBook(ref, side, market, ob)
	if len(book.Asks.Levels) == 0 {
		return domain.VenueBook{}, fmt.Errorf("%w: kalshi %s %s: no asks", domain.ErrMissingQuote, ticker, side)
	}
	return book, nil
}

// ToVenueBook derives the ask ladder for side from the opposite side's bids
// and fills in the top-of-book quote.
func ToVenueBook(ref, side string, m Market, ob Orderbook) domain.VenueBook {
	own, opposite := ob.YesBids, ob.NoBids
	if side == SideNo {
		own, opposite = ob.NoBids, ob.YesBids
	}

	asks := make([]domain.PriceLevel, 0, len(opposite))
	for _, lvl := range opposite {
		if lvl.Quantity <= 0 || lvl.Price <= 0 || lvl.Price >= 100 {
			continue
		}
		asks = append(asks, domain.PriceLevel{
			Price: float64(100-lvl.Price) / 100,
			Size:  float64(lvl.Quantity),
		})
	}
	sort.Slice(asks, func(i, j int) bool { return asks[i].Price < asks[j].Price })

	var bestBid float64
	for _, lvl := range own {
		if lvl.Quantity > 0 {
			bestBid = max(bestBid, float64(lvl.Price)/100)
		}
	}

	quote := domain.Quote{
		Venue:      domain.VenueKalshi,
		Ref:        ref,
		BestBid:    bestBid,
		Volume:     float64(m.Volume),
		ObservedAt: ob.ObservedAt,
	}
	if len(asks) > 0 {
		quote.BestAsk = asks[0].Price
	}

	return domain.VenueBook{
		Quote: quote,
		Asks: domain.DepthLadder{
			Venue:      domain.VenueKalshi,
			Side:       domain.SideAsk,
			Levels:     asks,
			ObservedAt: ob.ObservedAt,
		},
	}
}
