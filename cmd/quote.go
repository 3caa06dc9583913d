package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"treasury-exchange/config"
	"treasury-exchange/pkg/lifecycle"
	"treasury-exchange/pkg/parser"
	"treasury-exchange/pkg/pricing"
	"treasury-exchange/pkg/rate"
)

var (
	quoteSlippage string
	quoteReverse  bool
	quoteWatch    bool
)

var quoteCmd = &cobra.Command{
	Use:   "quote <amount> <source-token> to <dest-token>",
	Short: "Preview an exchange with a dry-run quote",
	Long: `Request a dry-run quote for exchanging treasury assets. Nothing is reserved
and no deposit address is issued.

Tokens are given by symbol. Append @<chain> to pick a chain and prefix with
intents: to use the intents-held variant of a NEAR token.

Examples:
  near-treasury quote 2.5 NEAR to USDC
  near-treasury quote 100 USDT to intents:USDC --slippage 1 --reverse
  near-treasury quote 10 USDC@eth to NEAR --watch`,
	Args: cobra.MinimumNArgs(1),
	Run:  runQuote,
}

func init() {
	rootCmd.AddCommand(quoteCmd)

	quoteCmd.Flags().StringVar(&quoteSlippage, "slippage", "0.5", "Slippage tolerance in percent")
	quoteCmd.Flags().BoolVar(&quoteReverse, "reverse", false, "Show the rate per destination token")
	quoteCmd.Flags().BoolVarP(&quoteWatch, "watch", "w", false, "Keep the quote fresh until interrupted")
}

func runQuote(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	req, err := parser.ParseExchangeCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	slippage, err := parseSlippage(quoteSlippage)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if err := cfg.RequireTreasury(); err != nil {
		printError(err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	apiClient := newClient(cfg)
	catalog, err := loadCatalog(ctx, apiClient, jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	source, dest, err := resolveAssets(catalog, req)
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	prices := pricing.FromCatalog(catalog, time.Now())

	controller := lifecycle.NewController(apiClient, lifecycle.Config{
		Step:            lifecycle.StepExplore,
		TreasuryAccount: cfg.TreasuryAccount,
		RefreshInterval: cfg.DryRefreshInterval,
		RequestTimeout:  cfg.RequestTimeout,
		Metrics:         startMetrics(ctx, cfg),
	})
	defer controller.Close()

	inputs := lifecycle.Inputs{
		Source:          source,
		Destination:     dest,
		Amount:          req.Amount,
		SlippagePercent: slippage,
	}
	controller.SetInputs(inputs)

	waitCtx, waitCancel := context.WithTimeout(ctx, 2*cfg.RequestTimeout)
	snap, err := waitForQuote(waitCtx, controller, jsonOutput)
	waitCancel()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	if jsonOutput {
		pair := rate.FromQuote(snap.Quote, source, dest)
		output := map[string]interface{}{
			"source":            source,
			"destination":       dest,
			"amount_in":         snap.Quote.AmountInFormatted,
			"amount_out":        snap.Quote.AmountOutFormatted,
			"min_amount_out":    rate.MinimumReceived(snap.Quote.MinAmountOut, dest.Decimals),
			"rate":              rate.ExchangeRate(pair, quoteReverse),
			"time_estimate_sec": snap.Quote.TimeEstimate,
		}
		if d, ok := prices.Deviation(snap.Quote, source, dest); ok {
			output["market_deviation"] = d.Detailed()
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayQuote(snap.Quote, source, dest, slippage, quoteReverse, prices)
	if !quoteWatch {
		return
	}

	watchQuote(ctx, controller, func(s lifecycle.Snapshot) {
		displayQuote(s.Quote, source, dest, slippage, quoteReverse, prices)
	})
}

// watchQuote prints every new quote with a countdown until ctx ends
func watchQuote(ctx context.Context, controller *lifecycle.Controller, show func(lifecycle.Snapshot)) {
	fmt.Println("Watching quote. Press Ctrl+C to stop.")

	last := controller.Snapshot().FetchedAt
	stop := controller.StartCountdown(func(seconds int) {
		s := controller.Snapshot()
		switch {
		case s.State == lifecycle.StateFresh && !s.FetchedAt.Equal(last):
			last = s.FetchedAt
			fmt.Print("\r\033[K")
			show(s)
		case s.Error != "":
			fmt.Printf("\r\033[K%s", color.RedString(s.Error))
		default:
			fmt.Printf("\r\033[KRefreshing in %ds", seconds)
		}
	})
	defer stop()

	<-ctx.Done()
	fmt.Println()
	log.Debug().Msg("Stopped watching quote")
}
