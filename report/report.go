package report

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/web3guy0/tradesim/evaluate"
	"github.com/web3guy0/tradesim/types"
)

// ═══════════════════════════════════════════════════════════════════════════════
// REPORTING - Human-readable summaries and CSV exports
// ═══════════════════════════════════════════════════════════════════════════════

// Summary renders a backtest result as a readable block.
func Summary(name string, m evaluate.Metrics) string {
	var b strings.Builder
	sep := strings.Repeat("=", 50)

	fmt.Fprintf(&b, "%s\n", sep)
	fmt.Fprintf(&b, "  %s\n", name)
	fmt.Fprintf(&b, "%s\n", sep)
	fmt.Fprintf(&b, "Initial Capital:  $%.2f\n", m.InitialCapital)
	fmt.Fprintf(&b, "Final Value:      $%.2f\n", m.FinalValue)
	fmt.Fprintf(&b, "Total Return:     %.2f%%\n", m.TotalReturn*100)
	fmt.Fprintf(&b, "Sharpe Ratio:     %.2f\n", m.SharpeRatio)
	fmt.Fprintf(&b, "Max Drawdown:     %.2f%%\n", m.MaxDrawdown*100)
	fmt.Fprintf(&b, "Total Trades:     %d\n", m.TotalTrades)
	fmt.Fprintf(&b, "Win Rate:         %.1f%% (%dW / %dL)\n", m.WinRate*100, m.WinningTrades, m.LosingTrades)
	fmt.Fprintf(&b, "Avg Win:          %.2f%%\n", m.AvgWinPct*100)
	fmt.Fprintf(&b, "Avg Loss:         %.2f%%\n", m.AvgLossPct*100)
	fmt.Fprintf(&b, "Profit Factor:    %.2f\n", m.ProfitFactor)
	fmt.Fprintf(&b, "Commission Paid:  $%s\n", m.Commission.StringFixed(2))
	fmt.Fprintf(&b, "Slippage Cost:    $%s\n", m.SlippageCost.StringFixed(2))
	fmt.Fprintf(&b, "%s\n", sep)

	return b.String()
}

// ComparisonTable renders strategy comparison results, best first.
func ComparisonTable(results []evaluate.Result) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %10s %8s %10s %9s %7s %8s\n",
		"Strategy", "Return", "Sharpe", "Drawdown", "WinRate", "Trades", "PFactor")
	for _, r := range results {
		m := r.Metrics
		fmt.Fprintf(&b, "%-20s %9.2f%% %8.2f %9.2f%% %8.1f%% %7d %8.2f\n",
			r.Strategy, m.TotalReturn*100, m.SharpeRatio, m.MaxDrawdown*100,
			m.WinRate*100, m.TotalTrades, m.ProfitFactor)
	}
	return b.String()
}

// AppendStatus appends a timestamped report block to path, creating the
// file on first use. Used by scheduled reports so every report leaves a
// durable record alongside the log and notification.
func AppendStatus(path, text string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "[%s]\n%s\n\n", time.Now().Format(time.RFC3339), text); err != nil {
		return err
	}
	log.Debug().Str("path", path).Msg("💾 Report appended")
	return nil
}

// ExportTrades writes the trade log to a CSV file.
func ExportTrades(path string, trades []types.Trade) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"timestamp", "symbol", "action", "price", "quantity",
		"commission", "slippage_cost", "cash_delta", "portfolio_before", "portfolio_after", "reason"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, t := range trades {
		row := []string{
			t.Timestamp.Format(time.RFC3339),
			t.Symbol,
			string(t.Action),
			t.Price.String(),
			t.Quantity.String(),
			t.Commission.String(),
			t.SlippageCost.String(),
			t.CashDelta.String(),
			t.PortfolioBefore.String(),
			t.PortfolioAfter.String(),
			t.Reason,
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	log.Info().Str("path", path).Int("trades", len(trades)).Msg("💾 Trade log exported")
	return nil
}

// ExportHistory writes the portfolio value curve to a CSV file.
func ExportHistory(path string, history []types.ValuePoint) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	header := []string{"timestamp", "value", "cash", "positions_value", "open_positions"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, p := range history {
		row := []string{
			p.Timestamp.Format(time.RFC3339),
			p.Value.String(),
			p.Cash.String(),
			p.PositionsValue.String(),
			strconv.Itoa(p.OpenPositions),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}

	log.Info().Str("path", path).Int("points", len(history)).Msg("💾 Value history exported")
	return nil
}
