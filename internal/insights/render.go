package insights

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	pkgstrings "adbridge/pkg/strings"
)

const (
	maxCampaignNameWidth = 24

	// MaxTableRows is how many campaigns RenderTable lists; the rest are
	// folded into a summary line. Totals always cover every row.
	MaxTableRows = 25
)

// Totals sums rows.
func Totals(rows []InsightRow) InsightRow {
	total := InsightRow{CampaignName: "Total"}
	for _, r := range rows {
		total.Impressions += r.Impressions
		total.Clicks += r.Clicks
		total.Spend += r.Spend
	}
	return total
}

// CTR returns clicks over impressions as a percentage.
func (r InsightRow) CTR() float64 {
	if r.Impressions == 0 {
		return 0
	}
	return float64(r.Clicks) / float64(r.Impressions) * 100
}

// RenderTable renders rows as a plain-text table suitable for a monospace
// chat block, highest spend first. A totals footer is added when there is
// more than one row.
func RenderTable(rows []InsightRow) string {
	sorted := slices.Clone(rows)
	slices.SortStableFunc(sorted, func(a, b InsightRow) int {
		return cmp.Compare(b.Spend, a.Spend)
	})

	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options.SeparateRows = false
	t.AppendHeader(table.Row{"Campaign", "Impr.", "Clicks", "CTR", "Spend"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 3, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 4, Align: text.AlignRight, AlignFooter: text.AlignRight},
		{Number: 5, Align: text.AlignRight, AlignFooter: text.AlignRight},
	})

	shown := sorted
	if len(shown) > MaxTableRows {
		shown = shown[:MaxTableRows]
	}
	for _, r := range shown {
		t.AppendRow(row(r, truncate(r.CampaignName, maxCampaignNameWidth)))
	}
	if hidden := len(sorted) - len(shown); hidden > 0 {
		t.AppendRow(table.Row{fmt.Sprintf("… %d more", hidden), "", "", "", ""})
	}
	if len(rows) > 1 {
		t.AppendFooter(row(Totals(rows), "Total"))
	}
	return t.Render()
}

func row(r InsightRow, name string) table.Row {
	return table.Row{
		name,
		groupThousands(r.Impressions),
		groupThousands(r.Clicks),
		fmt.Sprintf("%.2f%%", r.CTR()),
		fmt.Sprintf("%.2f", r.Spend),
	}
}

func truncate(s string, width int) string {
	if s = pkgstrings.Truncate(s, width); s == "" {
		return "(unnamed)"
	}
	return s
}

func groupThousands(n int64) string {
	s := fmt.Sprintf("%d", n)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}
