package aggregator

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Message is the rendered alert.
type Message struct {
	Title string
	Text  string
}

// Legend carries the parameters echoed at the bottom of the message.
type Legend struct {
	Percentile         int
	MaxTrafficFraction float64
	HysteresisFraction float64
}

var (
	million  = decimal.NewFromInt(1_000_000)
	thousand = decimal.NewFromInt(1000)
)

// Title is the alert subject for a result.
func Title(res Result) string {
	return fmt.Sprintf("Links exceeding traffic limit (%s to %s)", res.Window.Begin.Short(), res.Window.End.Short())
}

// Render composes the alert text. The output depends only on res and legend.
func Render(res Result, legend Legend) Message {
	msg := Message{Title: Title(res)}
	days := len(res.Window.Days())

	if len(res.TimeExceeded) == 0 && len(res.Missing) == 0 && len(res.NoData) == 0 {
		msg.Text = fmt.Sprintf("No link exceeded the traffic limit for %d minutes or more in the last %d days (%s to %s).",
			res.Window.TimeThresholdMinutes, days, res.Window.Begin.Short(), res.Window.End.Short())
		return msg
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Report from %s to %s (%d days, %d reports available)\n",
		res.Window.Begin.Short(), res.Window.End.Short(), days, len(res.Available))

	if len(res.Percentiles) > 0 {
		fmt.Fprintf(&b, "\nMost utilized links by %s percentile:\n", ordinal(legend.Percentile))
		for _, p := range res.Percentiles {
			fmt.Fprintf(&b, "  %s%s: %s, %s%% of capacity\n",
				p.Link, capacitySuffix(p.CapacityBPS), formatBPS(p.PercentileBPS), p.UtilizationPct.StringFixed(2))
		}
	}

	if len(res.TimeExceeded) > 0 {
		b.WriteString("\nLinks over the limit:\n")
		for _, e := range res.TimeExceeded {
			fmt.Fprintf(&b, "  %s%s: %d minutes over the limit in %d %s\n",
				e.Link, capacitySuffix(res.Capacities[e.Link]), e.TotalExceededMinutes, e.DaysExceeded, plural(e.DaysExceeded, "day", "days"))
		}
	}

	if len(res.Missing) > 0 {
		b.WriteString("\nMissing reports, exceeded time on these days is not counted:\n")
		for _, d := range res.Missing {
			fmt.Fprintf(&b, "  %s\n", d.Short())
		}
	}

	if len(res.NoData) > 0 {
		b.WriteString("\nLinks without data, check the collector:\n")
		for _, n := range res.NoData {
			fmt.Fprintf(&b, "  %s%s: %d %s\n",
				n.Link, capacitySuffix(res.Capacities[n.Link]), n.Days, plural(n.Days, "day", "days"))
		}
	}

	b.WriteString("\nLegend:\n")
	fmt.Fprintf(&b, "  time threshold: %d minutes per day\n", res.Window.TimeThresholdMinutes)
	fmt.Fprintf(&b, "  traffic limit: %s%% of capacity, hysteresis %s%%\n",
		percent(legend.MaxTrafficFraction), percent(legend.HysteresisFraction))
	if legend.Percentile > 0 {
		fmt.Fprintf(&b, "  ranking: %s percentile over the window\n", ordinal(legend.Percentile))
	}

	msg.Text = strings.TrimRight(b.String(), "\n")
	return msg
}

// FormatCapacity renders a capacity in Mbps, switching to Gbps from 1000 Mbps.
func FormatCapacity(bps float64) string {
	mbps := decimal.NewFromFloat(bps).Div(million)
	if mbps.GreaterThanOrEqual(thousand) {
		return mbps.Div(thousand).Truncate(0).String() + " Gbps"
	}
	return mbps.Truncate(0).String() + " Mbps"
}

func capacitySuffix(bps float64) string {
	if bps <= 0 {
		return ""
	}
	return " (" + FormatCapacity(bps) + ")"
}

func formatBPS(bps float64) string {
	return decimal.NewFromFloat(bps).Div(million).StringFixed(1) + " Mbps"
}

func percent(fraction float64) string {
	return decimal.NewFromFloat(fraction * 100).Round(1).String()
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}

func ordinal(n int) string {
	suffix := "th"
	switch {
	case n%100 >= 11 && n%100 <= 13:
	case n%10 == 1:
		suffix = "st"
	case n%10 == 2:
		suffix = "nd"
	case n%10 == 3:
		suffix = "rd"
	}
	return fmt.Sprintf("%d%s", n, suffix)
}
