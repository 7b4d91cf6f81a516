package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/steffenmax/arbbot/internal/domain"
)

// OpenedMessage formats the alert for a newly opened opportunity from the
// candidate that opened it.
func OpenedMessage(c domain.ArbitrageCandidate) (title, message string) {
	title = fmt.Sprintf("Arb open: %s", eventLabel(c.EventName, c.EventID))

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", c.Direction)
	writeLeg(&b, "A", c.LegA)
	writeLeg(&b, "B", c.LegB)
	fmt.Fprintf(&b, "Size %.0f contracts, cost $%.2f\n", c.Quantity, c.GrossCost)
	fmt.Fprintf(&b, "Net $%.2f after $%.2f fees (%.2f%%)", c.NetProfit, c.Fees+c.FixedCost, c.ROIPct)
	return title, b.String()
}

// ClosedMessage formats the alert for a closed opportunity.
func ClosedMessage(c domain.ClosedOpportunity) (title, message string) {
	title = fmt.Sprintf("Arb closed: %s", eventLabel(c.EventName, c.Key.EventID))

	var b strings.Builder
	fmt.Fprintf(&b, "%s\n", c.Key.Direction)
	fmt.Fprintf(&b, "Lasted %s over %d cycles\n", c.Duration.Round(time.Second), c.Observations)
	fmt.Fprintf(&b, "Net %% peak %.2f, trough %.2f\n", c.PeakNetPct, c.TroughNetPct)
	fmt.Fprintf(&b, "Peak net $%.2f", c.PeakNetProfitUSD)
	return title, b.String()
}

// ErrorMessage formats an operational error alert.
func ErrorMessage(op string, err error) (title, message string) {
	return "arbbot error: " + op, err.Error()
}

func writeLeg(b *strings.Builder, name string, l domain.Leg) {
	fmt.Fprintf(b, "%s: buy %s on %s @ %.4f (fee $%.2f)\n", name, l.OutcomeID, l.Venue, l.Price, l.Fee)
}

func eventLabel(name, id string) string {
	if name == "" {
		return id
	}
	return name
}
