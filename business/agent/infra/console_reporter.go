// Package infra contains infrastructure adapters for the agent context.
package infra

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	tradingDomain "github.com/0xvey/dexmaker/business/trading/domain"
)

// ConsoleReporter implements Reporter for CLI output.
type ConsoleReporter struct {
	out io.Writer
}

// NewConsoleReporter creates a new ConsoleReporter.
func NewConsoleReporter() *ConsoleReporter {
	return &ConsoleReporter{
		out: os.Stdout,
	}
}

// NewConsoleReporterWithWriter creates a ConsoleReporter writing to w.
func NewConsoleReporterWithWriter(w io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: w}
}

// Start initializes the console reporter.
func (r *ConsoleReporter) Start(ctx context.Context) error {
	fmt.Fprintln(r.out, "DEX Market Maker Started")
	fmt.Fprintln(r.out, "========================")
	return nil
}

// ReportTrade outputs a completed trade attempt to the console.
func (r *ConsoleReporter) ReportTrade(result tradingDomain.TradeResult) {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "================================================================================")
	if result.Success {
		fmt.Fprintln(r.out, "TRADE EXECUTED")
	} else {
		fmt.Fprintln(r.out, "TRADE FAILED")
	}
	fmt.Fprintln(r.out, "================================================================================")
	fmt.Fprintf(r.out, "ID:             %s\n", result.ID)
	fmt.Fprintf(r.out, "Timestamp:      %s\n", result.Timestamp.Format(time.RFC3339))
	fmt.Fprintf(r.out, "Pair:           %s\n", result.Pair.String())
	fmt.Fprintf(r.out, "Amount In:      %s\n", result.AmountIn.String())
	fmt.Fprintf(r.out, "Min Out:        %s\n", result.MinAmountOut.String())
	if result.Quote != nil {
		fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
		fmt.Fprintln(r.out, "ROUTE")
		fmt.Fprintf(r.out, "  Router:         %s (%s)\n", result.Quote.Source, result.Quote.Version)
		fmt.Fprintf(r.out, "  Quoted Out:     %s\n", result.Quote.AmountOut.String())
		if result.Quote.Version == tradingDomain.RouterV3 {
			fmt.Fprintf(r.out, "  Fee Tier:       %d\n", result.Quote.FeeTier)
		}
	}
	if result.Success {
		fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
		fmt.Fprintf(r.out, "  Tx:             %s\n", result.TxHash.Hex())
		fmt.Fprintf(r.out, "  Gas Used:       %d\n", result.GasUsed)
	} else {
		fmt.Fprintln(r.out, "--------------------------------------------------------------------------------")
		fmt.Fprintf(r.out, "  Reason:         %s\n", result.Reason)
		if result.Err != nil {
			fmt.Fprintf(r.out, "  Error:          %s\n", result.Err)
		}
	}
	fmt.Fprintln(r.out, "================================================================================")
}

// ReportRotation outputs the active pair set after an evaluation.
func (r *ConsoleReporter) ReportRotation(active []string) {
	fmt.Fprintf(r.out, "[%s] active pairs: %s\n",
		time.Now().Format("15:04:05"), strings.Join(active, ", "))
}

// Stop gracefully shuts down the console reporter.
func (r *ConsoleReporter) Stop() error {
	fmt.Fprintln(r.out, "")
	fmt.Fprintln(r.out, "DEX Market Maker Stopped")
	return nil
}
