package common

import (
	"fmt"
	"io"
	"strings"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/pricing"

	"github.com/shopspring/decimal"
)

const (
	ReportWidth     = 80
	WideReportWidth = 100

	timeLayout = "2006-01-02 15:04:05"
)

// Report renders the framed plain-text output of the operator CLIs.
type Report struct {
	w     io.Writer
	width int
}

func NewReport(w io.Writer, width int) *Report {
	return &Report{w: w, width: width}
}

// Open prints the title between two rules.
func (r *Report) Open(title string) {
	fmt.Fprintf(r.w, "\n%s\n%s\n%s\n", r.rule(), title, r.rule())
}

// Close prints the summary line under a rule and ends the report.
func (r *Report) Close(summary string) {
	fmt.Fprintf(r.w, "\n%s\n%s\n%s\n\n", r.rule(), summary, r.rule())
}

func (r *Report) Rule() {
	fmt.Fprintln(r.w, r.rule())
}

// Field prints an aligned label and value line.
func (r *Report) Field(label string, value any) {
	fmt.Fprintf(r.w, "%-18s %v\n", label+":", value)
}

// Wallet prints the balances of one wallet and the id of its latest
// transaction.
func (r *Report) Wallet(w *models.Wallet, lastTxId string) {
	fmt.Fprintf(r.w, "\n┌─ Wallet: %s\n", w.Owner())
	fmt.Fprintf(r.w, "│  ID: %s (v%d, updated: %s)\n", w.Id, w.Version, w.UpdatedAt.Format(timeLayout))
	fmt.Fprintln(r.w, "├"+strings.Repeat("─", r.width-2))

	rows := []struct {
		label  string
		amount decimal.Decimal
	}{
		{"Pending", w.PendingBalance},
		{"Available", w.AvailableBalance},
		{"Locked", w.LockedBalance},
		{"Total earned", w.TotalEarnings},
		{"Withdrawn", w.TotalWithdrawn},
	}
	for _, row := range rows {
		fmt.Fprintf(r.w, "│  %-15s: %20s\n", row.label, FormatMoney(row.amount))
	}
	fmt.Fprintf(r.w, "└  %-15s: %20s\n", "Last tx", shortId(lastTxId))
}

// Payout prints one payout with its lifecycle timestamps. The last payout of
// a list closes the frame.
func (r *Report) Payout(p *models.Payout, last bool) {
	item, detail := "│  ", "│  "
	if last {
		item, detail = "└  ", "   "
	}

	owner := models.WalletOwner{Type: p.OwnerType, Id: p.OwnerId}
	fmt.Fprintf(r.w, "%s %-36s %-10s %12s  %s\n", item, p.Id, p.Status, FormatMoney(p.Amount), owner)
	parts := []string{"requested: " + p.RequestedAt.Format(timeLayout)}
	if p.ProcessedAt != nil {
		parts = append(parts, "processed: "+p.ProcessedAt.Format(timeLayout))
	}
	if p.SettlementRef != "" {
		parts = append(parts, "ref: "+p.SettlementRef)
	}
	if p.RejectionReason != "" {
		parts = append(parts, "reason: "+p.RejectionReason)
	}
	fmt.Fprintf(r.w, "%s   %s\n", detail, strings.Join(parts, ", "))
}

func (r *Report) rule() string {
	return strings.Repeat("=", r.width)
}

// FormatMoney renders an amount at ledger precision.
func FormatMoney(d decimal.Decimal) string {
	return d.StringFixed(pricing.MoneyPlaces)
}

func shortId(id string) string {
	if id == "" {
		return "none"
	}
	if len(id) > 8 {
		return id[:8] + "..."
	}
	return id
}
