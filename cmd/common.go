package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"treasury-exchange/config"
	"treasury-exchange/pkg/client"
	"treasury-exchange/pkg/feedback"
	"treasury-exchange/pkg/lifecycle"
	"treasury-exchange/pkg/metrics"
	"treasury-exchange/pkg/pricing"
	"treasury-exchange/pkg/rate"
	"treasury-exchange/pkg/types"
	"treasury-exchange/pkg/units"
)

func newClient(cfg *config.Config) *client.OneClickClient {
	return client.NewOneClickClient(client.Options{
		BaseURL:            cfg.BaseURL,
		JWTToken:           cfg.JWTToken,
		WrapContract:       cfg.WrapContract,
		QuoteWaitingTimeMs: cfg.QuoteWaitingTimeMs,
		Timeout:            cfg.RequestTimeout,
	})
}

func newSpinner(suffix string, quiet bool) func() {
	if quiet {
		return func() {}
	}
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.Suffix = " " + suffix
	s.Start()
	return s.Stop
}

// loadCatalog fetches the asset catalogue
func loadCatalog(ctx context.Context, apiClient *client.OneClickClient, quiet bool) (*client.Catalog, error) {
	stop := newSpinner("Fetching supported tokens...", quiet)
	catalog, err := apiClient.ListAssets(ctx)
	stop()
	return catalog, err
}

// resolveAssets maps the typed tokens to catalogue assets
func resolveAssets(catalog *client.Catalog, req *types.ExchangeRequest) (types.Asset, types.Asset, error) {
	source, err := catalog.Find(req.Source.Symbol, req.Source.Network, req.Source.Intents)
	if err != nil {
		return types.Asset{}, types.Asset{}, feedback.Input(lifecycle.FieldSource, err)
	}
	dest, err := catalog.Find(req.Destination.Symbol, req.Destination.Network, req.Destination.Intents)
	if err != nil {
		return types.Asset{}, types.Asset{}, feedback.Input(lifecycle.FieldDestination, err)
	}
	if source.Same(dest) {
		return types.Asset{}, types.Asset{}, feedback.Input(lifecycle.FieldDestination, feedback.ErrSameAsset)
	}
	return source, dest, nil
}

func parseSlippage(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(strings.TrimSuffix(s, "%")))
	if err != nil {
		return decimal.Zero, feedback.Input(lifecycle.FieldSlippage, feedback.ErrSlippageOutOfRange)
	}
	if err := units.ValidateSlippage(d); err != nil {
		return decimal.Zero, feedback.Input(lifecycle.FieldSlippage, err)
	}
	return d, nil
}

// startMetrics serves Prometheus metrics when an address is configured
func startMetrics(ctx context.Context, cfg *config.Config) *metrics.Metrics {
	if cfg.MetricsAddr == "" {
		return nil
	}
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	go func() {
		if err := metrics.Serve(ctx, cfg.MetricsAddr, reg); err != nil {
			log.Error().Err(err).Msg("Metrics endpoint stopped")
		}
	}()
	return m
}

// waitForQuote blocks until the controller has a fresh quote or gives up
func waitForQuote(ctx context.Context, c *lifecycle.Controller, quiet bool) (lifecycle.Snapshot, error) {
	stop := newSpinner("Fetching quote...", quiet)
	defer stop()

	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		s := c.Snapshot()
		switch {
		case s.State == lifecycle.StateFresh:
			return s, nil
		case s.State == lifecycle.StateError && s.Error != "":
			return s, fmt.Errorf("%s", s.Error)
		case s.State == lifecycle.StateIdle && s.Quote == nil && s.Inputs.Validate() != nil:
			return s, s.Inputs.Validate()
		}

		select {
		case <-ctx.Done():
			return s, fmt.Errorf("timed out waiting for a quote: %w", ctx.Err())
		case <-ticker.C:
		}
	}
}

func displayQuote(q *types.Quote, source, dest types.Asset, slippage decimal.Decimal, reversed bool, prices *pricing.MarketPrices) {
	pair := rate.FromQuote(q, source, dest)

	fmt.Println("\n" + strings.Repeat("=", 60))
	if q.Dry {
		color.Green("                   EXCHANGE QUOTE (preview)")
	} else {
		color.Green("                   EXCHANGE QUOTE (binding)")
	}
	fmt.Println(strings.Repeat("=", 60))

	fmt.Printf("\n  From:              %s %s\n", q.AmountInFormatted, color.YellowString(source.Symbol))
	fmt.Printf("  To:                ~%s %s\n", q.AmountOutFormatted, color.YellowString(dest.Symbol))
	fmt.Printf("  Rate:              %s\n", rate.ExchangeRate(pair, reversed))
	fmt.Printf("  Minimum Received:  %s %s\n", rate.MinimumReceived(q.MinAmountOut, dest.Decimals), dest.Symbol)
	fmt.Printf("  Slippage:          %s%%\n", slippage.String())

	if d, ok := prices.Deviation(q, source, dest); ok {
		value := d.Detailed()
		if d.Favorable() {
			value = color.GreenString(value)
		} else {
			value = color.RedString(value)
		}
		fmt.Printf("  Market Deviation:  %s\n", value)
	} else {
		fmt.Printf("  Market Deviation:  %s\n", color.HiBlackString(rate.NoMarketData))
	}

	fmt.Printf("  Estimated Time:    %d seconds\n", q.TimeEstimate)
	if !q.Deadline.IsZero() {
		fmt.Printf("  Quote Deadline:    %s\n", q.Deadline.Local().Format("2006-01-02 15:04:05"))
	}
	if !q.Dry {
		fmt.Printf("  Deposit Address:   %s\n", color.CyanString(q.DepositAddress))
	}

	fmt.Println("\n" + strings.Repeat("=", 60) + "\n")
}

func confirm(prompt string) bool {
	reader := bufio.NewReader(os.Stdin)
	fmt.Printf("\n%s (y/N): ", prompt)

	response, err := reader.ReadString('\n')
	if err != nil {
		return false
	}

	response = strings.TrimSpace(strings.ToLower(response))
	return response == "y" || response == "yes"
}
