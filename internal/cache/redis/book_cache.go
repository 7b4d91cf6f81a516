package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/steffenmax/arbbot/internal/domain"
)

// BookCache implements domain.BookCache with a sorted set for the ask ladder
// and hashes for level sizes and the quote.
//
// Key schema (under the client namespace):
//
//	book:{venue}:{ref}:asks     - sorted set of ask prices (score = price)
//	book:{venue}:{ref}:ask:size - hash mapping price -> size
//	book:{venue}:{ref}:quote    - hash with bid, ask, volume and ts fields
type BookCache struct {
	c   *Client
	rdb *redis.Client
	ttl time.Duration
}

// NewBookCache creates a BookCache backed by the given Client. Books expire
// after ttl; zero keeps them until overwritten.
func NewBookCache(c *Client, ttl time.Duration) *BookCache {
	return &BookCache{c: c, rdb: c.Underlying(), ttl: ttl}
}

func (bc *BookCache) asksKey(venue domain.Venue, ref string) string {
	return bc.c.key("book", string(venue), ref, "asks")
}

func (bc *BookCache) askSizeKey(venue domain.Venue, ref string) string {
	return bc.c.key("book", string(venue), ref, "ask", "size")
}

func (bc *BookCache) quoteKey(venue domain.Venue, ref string) string {
	return bc.c.key("book", string(venue), ref, "quote")
}

func formatFloat(f float64) string { return strconv.FormatFloat(f, 'f', -1, 64) }

// SetBook atomically replaces the cached book for the quote's venue and ref.
func (bc *BookCache) SetBook(ctx context.Context, book domain.VenueBook) error {
	venue, ref := book.Quote.Venue, book.Quote.Ref
	asksKey := bc.asksKey(venue, ref)
	sizeKey := bc.askSizeKey(venue, ref)
	quoteKey := bc.quoteKey(venue, ref)

	pipe := bc.rdb.TxPipeline()
	pipe.Del(ctx, asksKey, sizeKey, quoteKey)

	for _, lvl := range book.Asks.Levels {
		price := formatFloat(lvl.Price)
		pipe.ZAdd(ctx, asksKey, redis.Z{Score: lvl.Price, Member: price})
		pipe.HSet(ctx, sizeKey, price, formatFloat(lvl.Size))
	}

	pipe.HSet(ctx, quoteKey, quoteFields(book.Quote))

	if bc.ttl > 0 {
		pipe.Expire(ctx, asksKey, bc.ttl)
		pipe.Expire(ctx, sizeKey, bc.ttl)
		pipe.Expire(ctx, quoteKey, bc.ttl)
	}

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set book %s %s: %w", venue, ref, err)
	}
	return nil
}

// GetBook reconstructs the cached book. It returns domain.ErrNotFound if
// nothing is cached for the venue and ref.
func (bc *BookCache) GetBook(ctx context.Context, venue domain.Venue, ref string) (domain.VenueBook, error) {
	pipe := bc.rdb.Pipeline()
	asksCmd := pipe.ZRangeWithScores(ctx, bc.asksKey(venue, ref), 0, -1)
	sizeCmd := pipe.HGetAll(ctx, bc.askSizeKey(venue, ref))
	quoteCmd := pipe.HGetAll(ctx, bc.quoteKey(venue, ref))

	if _, err := pipe.Exec(ctx); err != nil && err != redis.Nil {
		return domain.VenueBook{}, fmt.Errorf("redis: get book %s %s: %w", venue, ref, err)
	}

	quoteVals, _ := quoteCmd.Result()
	if len(quoteVals) == 0 {
		return domain.VenueBook{}, domain.ErrNotFound
	}

	quote := parseQuote(venue, ref, quoteVals)
	sizes, _ := sizeCmd.Result()
	asksZ, _ := asksCmd.Result()

	levels := make([]domain.PriceLevel, 0, len(asksZ))
	for _, z := range asksZ {
		price, ok := z.Member.(string)
		if !ok {
			continue
		}
		size, _ := strconv.ParseFloat(sizes[price], 64)
		levels = append(levels, domain.PriceLevel{Price: z.Score, Size: size})
	}

	return domain.VenueBook{
		Quote: quote,
		Asks: domain.DepthLadder{
			Venue:      venue,
			Side:       domain.SideAsk,
			Levels:     levels,
			ObservedAt: quote.ObservedAt,
		},
	}, nil
}

func quoteFields(q domain.Quote) map[string]any {
	return map[string]any{
		"bid":    formatFloat(q.BestBid),
		"ask":    formatFloat(q.BestAsk),
		"volume": formatFloat(q.Volume),
		"ts":     strconv.FormatInt(q.ObservedAt.UnixNano(), 10),
	}
}

func parseQuote(venue domain.Venue, ref string, vals map[string]string) domain.Quote {
	q := domain.Quote{Venue: venue, Ref: ref}
	q.BestBid, _ = strconv.ParseFloat(vals["bid"], 64)
	q.BestAsk, _ = strconv.ParseFloat(vals["ask"], 64)
	q.Volume, _ = strconv.ParseFloat(vals["volume"], 64)
	if ns, err := strconv.ParseInt(vals["ts"], 10, 64); err == nil {
		q.ObservedAt = time.Unix(0, ns)
	}
	return q
}

// Compile-time interface check.
var _ domain.BookCache = (*BookCache)(nil)
