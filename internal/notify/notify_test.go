package notify_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steffenmax/arbbot/internal/domain"
	"github.com/steffenmax/arbbot/internal/notify"
)

type recordingSender struct {
	name   string
	err    error
	titles []string
}

func (r *recordingSender) Send(_ context.Context, title, _ string) error {
	r.titles = append(r.titles, title)
	return r.err
}

func (r *recordingSender) Name() string { return r.name }

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNotifier_FiltersEvents(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := notify.NewNotifier([]notify.Sender{s}, []string{notify.EventOpportunityClosed}, discardLogger())

	require.NoError(t, n.Notify(context.Background(), notify.EventOpportunityOpened, "opened", ""))
	require.NoError(t, n.Notify(context.Background(), notify.EventOpportunityClosed, "closed", ""))

	assert.Equal(t, []string{"closed"}, s.titles)
}

func TestNotifier_EmptyFilterAllowsAll(t *testing.T) {
	s := &recordingSender{name: "rec"}
	n := notify.NewNotifier([]notify.Sender{s}, nil, discardLogger())

	require.NoError(t, n.Notify(context.Background(), notify.EventError, "boom", ""))
	assert.Len(t, s.titles, 1)
	assert.True(t, n.Allows("anything"))
}

func TestNotifier_SenderFailureDoesNotStopOthers(t *testing.T) {
	bad := &recordingSender{name: "bad", err: errors.New("503")}
	good := &recordingSender{name: "good"}
	n := notify.NewNotifier([]notify.Sender{bad, good}, nil, discardLogger())

	err := n.Notify(context.Background(), notify.EventError, "t", "m")
	require.Error(t, err)
	assert.ErrorIs(t, err, bad.err)
	assert.Contains(t, err.Error(), "bad")
	assert.Len(t, good.titles, 1)
}

func TestNotifier_NoSenders(t *testing.T) {
	n := notify.NewNotifier(nil, nil, discardLogger())
	assert.False(t, n.Enabled())
	assert.NoError(t, n.Notify(context.Background(), notify.EventError, "t", "m"))
}

func TestTelegramSender_Send(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botTOKEN/sendMessage", r.URL.Path)
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	s := notify.NewTelegramSender(srv.URL, "TOKEN", "-100123")
	require.NoError(t, s.Send(context.Background(), "Arb open: Celtics at Knicks", "net $4.10"))

	assert.Equal(t, "-100123", got["chat_id"])
	assert.Equal(t, "Arb open: Celtics at Knicks\nnet $4.10", got["text"])
	entities := got["entities"].([]any)
	require.Len(t, entities, 1)
	bold := entities[0].(map[string]any)
	assert.Equal(t, "bold", bold["type"])
	assert.Equal(t, float64(len("Arb open: Celtics at Knicks")), bold["length"])
}

func TestTelegramSender_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"ok":false,"description":"chat not found"}`, http.StatusBadRequest)
	}))
	defer srv.Close()

	err := notify.NewTelegramSender(srv.URL, "TOKEN", "1").Send(context.Background(), "t", "m")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Contains(t, err.Error(), "chat not found")
}

func TestDiscordSender_Send(t *testing.T) {
	var got struct {
		Content         string `json:"content"`
		AllowedMentions struct {
			Parse []string `json:"parse"`
		} `json:"allowed_mentions"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	require.NoError(t, notify.NewDiscordSender(srv.URL).Send(context.Background(), "Title", "body"))
	assert.Equal(t, "**Title**\nbody", got.Content)
	assert.NotNil(t, got.AllowedMentions.Parse)
	assert.Empty(t, got.AllowedMentions.Parse)
}

func TestDiscordSender_TruncatesLongMessages(t *testing.T) {
	var got struct {
		Content string `json:"content"`
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	long := strings.Repeat("é", 3000)
	require.NoError(t, notify.NewDiscordSender(srv.URL).Send(context.Background(), "T", long))
	assert.Equal(t, 2000, utf8.RuneCountInString(got.Content))
	assert.True(t, strings.HasSuffix(got.Content, "..."))
}

func TestMessages(t *testing.T) {
	c := domain.ArbitrageCandidate{
		EventID:   "nba-bos-nyk",
		EventName: "Celtics at Knicks",
		Direction: domain.DirectionFirstOnA,
		LegA:      domain.Leg{Venue: domain.VenueKalshi, OutcomeID: "bos", Price: 0.24, Fee: 6.39},
		LegB:      domain.Leg{Venue: domain.VenuePolymarket, OutcomeID: "nyk", Price: 0.31},
		Quantity:  500,
		GrossCost: 275,
		Fees:      6.39,
		NetProfit: 218.61,
		ROIPct:    79.49,
	}
	title, msg := notify.OpenedMessage(c)
	assert.Equal(t, "Arb open: Celtics at Knicks", title)
	assert.Contains(t, msg, "A: buy bos on kalshi @ 0.2400 (fee $6.39)")
	assert.Contains(t, msg, "Net $218.61")

	closed := domain.ClosedOpportunity{
		Key:          domain.OpportunityKey{EventID: "nba-bos-nyk", Direction: domain.DirectionFirstOnA},
		Duration:     4*time.Minute + 300*time.Millisecond,
		Observations: 5,
		PeakNetPct:   4.1,
		TroughNetPct: 1.2,
	}
	title, msg = notify.ClosedMessage(closed)
	assert.Equal(t, "Arb closed: nba-bos-nyk", title)
	assert.Contains(t, msg, "Lasted 4m0s over 5 cycles")
	assert.Contains(t, msg, "peak 4.10, trough 1.20")
}
