// Package report renders cycles and opportunity history as console tables.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/olekukonko/tablewriter"

	"github.com/steffenmax/arbbot/internal/domain"
)

// Console writes human-readable tables to out.
type Console struct {
	out io.Writer
}

// NewConsole creates a Console writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// Cycle prints the header line, the candidates and their capital tiers.
func (c *Console) Cycle(r domain.CycleReport) {
	fmt.Fprintf(c.out, "\n[%s] cycle %s: %d events, %d candidates, %d opened, %d closed (%s)\n",
		r.At.Format("15:04:05"), shortID(r.ID), r.Events, len(r.Candidates),
		len(r.Opened), len(r.Closed), r.Elapsed.Round(time.Millisecond))

	if len(r.Candidates) == 0 {
		fmt.Fprintln(c.out, "  no candidates")
		return
	}
	c.Candidates(r.Candidates)
	if len(r.Sizing) > 0 {
		c.Tiers(r.Candidates, r.Sizing)
	}
}

// Candidates prints one row per candidate, in the order given.
func (c *Console) Candidates(cs []domain.ArbitrageCandidate) {
	table := tablewriter.NewWriter(c.out)
	table.Header("#", "Event", "Dir", "Leg A", "Leg B", "Qty", "Fees", "Net $", "ROI %")
	for i, cand := range cs {
		table.Append(
			fmt.Sprintf("%d", i+1),
			eventLabel(cand.EventID, cand.EventName),
			cand.Direction.String(),
			legLabel(cand.LegA),
			legLabel(cand.LegB),
			fmt.Sprintf("%.0f", cand.Quantity),
			fmt.Sprintf("$%.2f", cand.Fees),
			fmt.Sprintf("$%.2f", cand.NetProfit),
			fmt.Sprintf("%.2f", cand.ROIPct),
		)
	}
	table.Render()
}

// Tiers prints the capital tier estimates, one row per candidate and tier.
func (c *Console) Tiers(cs []domain.ArbitrageCandidate, sizing []domain.SizingReport) {
	events := make(map[string]string, len(cs))
	for _, cand := range cs {
		events[cand.ID] = eventLabel(cand.EventID, cand.EventName)
	}

	table := tablewriter.NewWriter(c.out)
	table.Header("Event", "Dir", "Capital", "Qty", "Blended", "Slip A %", "Slip B %", "Net $", "ROI %", "Status")
	for _, rep := range sizing {
		for _, t := range rep.Tiers {
			status := "ok"
			if !t.Feasible {
				status = "infeasible"
			}
			table.Append(
				events[rep.CandidateID],
				rep.Key.Direction.String(),
				fmt.Sprintf("$%.0f", t.CapitalUSD),
				fmt.Sprintf("%.1f", t.Quantity),
				fmt.Sprintf("%.4f", t.BlendedPrice),
				fmt.Sprintf("%.2f", t.FillA.SlippagePct),
				fmt.Sprintf("%.2f", t.FillB.SlippagePct),
				fmt.Sprintf("$%.2f", t.NetProfit),
				fmt.Sprintf("%.2f", t.ROIPct),
				status,
			)
		}
	}
	table.Render()
}

// Active prints the live opportunities with their running time.
func (c *Console) Active(opps []domain.ActiveOpportunity) {
	if len(opps) == 0 {
		fmt.Fprintln(c.out, "  no active opportunities")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Event", "Dir", "Started", "Running", "Last %", "Peak %", "Trough %", "Peak $", "Seen")
	for _, o := range opps {
		table.Append(
			eventLabel(o.Key.EventID, o.EventName),
			o.Key.Direction.String(),
			o.StartedAt.Format("01-02 15:04:05"),
			o.Running.Round(time.Second).String(),
			fmt.Sprintf("%.2f", o.LastNetPct),
			fmt.Sprintf("%.2f", o.PeakNetPct),
			fmt.Sprintf("%.2f", o.TroughNetPct),
			fmt.Sprintf("$%.2f", o.PeakNetProfitUSD),
			fmt.Sprintf("%d", o.Observations),
		)
	}
	table.Render()
}

// Closed prints closed opportunity records.
func (c *Console) Closed(closed []domain.ClosedOpportunity) {
	if len(closed) == 0 {
		fmt.Fprintln(c.out, "  no closed opportunities")
		return
	}
	table := tablewriter.NewWriter(c.out)
	table.Header("Event", "Dir", "Started", "Closed", "Duration", "Peak %", "Trough %", "Peak $", "Seen")
	for _, o := range closed {
		table.Append(
			eventLabel(o.Key.EventID, o.EventName),
			o.Key.Direction.String(),
			o.StartedAt.Format("01-02 15:04:05"),
			o.ClosedAt.Format("01-02 15:04:05"),
			o.Duration.Round(time.Second).String(),
			fmt.Sprintf("%.2f", o.PeakNetPct),
			fmt.Sprintf("%.2f", o.TroughNetPct),
			fmt.Sprintf("$%.2f", o.PeakNetProfitUSD),
			fmt.Sprintf("%d", o.Observations),
		)
	}
	table.Render()
}

func legLabel(l domain.Leg) string {
	return fmt.Sprintf("%s %s @%.2f", l.Venue, l.OutcomeID, l.Price)
}

func eventLabel(id, name string) string {
	label := id
	if name != "" {
		label = name
	}
	if r := []rune(label); len(r) > 32 {
		return string(r[:31]) + "…"
	}
	return label
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
