package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"treasury-exchange/config"
	"treasury-exchange/pkg/client"
	"treasury-exchange/pkg/rate"
)

var (
	filterChain  string
	filterSymbol string
)

var tokensCmd = &cobra.Command{
	Use:     "tokens",
	Aliases: []string{"list-tokens", "ls"},
	Short:   "List the assets the treasury can exchange",
	Long: `List the assets supported by the NEAR Intents 1Click API, with where each is
held and its current USD price.

NEAR tokens are held directly by the treasury; tokens of other chains are held
through the intents contract.

Examples:
  near-treasury tokens
  near-treasury tokens --chain near
  near-treasury tokens --symbol USDC`,
	Run: runListTokens,
}

func init() {
	rootCmd.AddCommand(tokensCmd)

	tokensCmd.Flags().StringVar(&filterChain, "chain", "", "Filter by blockchain")
	tokensCmd.Flags().StringVar(&filterSymbol, "symbol", "", "Filter by token symbol")
}

type tokenOutput struct {
	Symbol    string `json:"symbol"`
	Network   string `json:"network"`
	Residency string `json:"residency"`
	Decimals  int32  `json:"decimals"`
	Address   string `json:"address"`
	PriceUSD  string `json:"price_usd,omitempty"`
}

func runListTokens(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	catalog, err := loadCatalog(context.Background(), newClient(cfg), jsonOutput)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	filtered := catalog.Filter(filterChain, filterSymbol)

	if jsonOutput {
		out := make([]tokenOutput, 0, len(filtered))
		for _, l := range filtered {
			t := tokenOutput{
				Symbol:    l.Asset.Symbol,
				Network:   l.Asset.Network,
				Residency: string(l.Asset.Residency),
				Decimals:  l.Asset.Decimals,
				Address:   l.Asset.Address,
			}
			if l.PriceUSD.Valid {
				t.PriceUSD = l.PriceUSD.Decimal.String()
			}
			out = append(out, t)
		}
		jsonData, _ := json.MarshalIndent(out, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayTokens(filtered)
}

func displayTokens(listings []client.Listing) {
	if len(listings) == 0 {
		fmt.Println("\nNo tokens found matching the criteria.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	color.Green("                            SUPPORTED TOKENS")
	fmt.Println(strings.Repeat("=", 90))

	byChain := make(map[string][]client.Listing)
	for _, l := range listings {
		byChain[l.Asset.Network] = append(byChain[l.Asset.Network], l)
	}

	chains := make([]string, 0, len(byChain))
	for chain := range byChain {
		chains = append(chains, chain)
	}
	sort.Strings(chains)

	for _, chain := range chains {
		color.Cyan("\n%s", strings.ToUpper(chain))
		fmt.Println(strings.Repeat("-", 90))

		for _, l := range byChain[chain] {
			address := l.Asset.Address
			if len(address) > 40 {
				address = address[:37] + "..."
			}

			price := "-"
			if l.PriceUSD.Valid {
				price = "$" + rate.FormatPrice(l.PriceUSD.Decimal)
			}

			fmt.Printf("  %-10s  %2d decimals  %-8s  %-12s  %s\n",
				color.YellowString(l.Asset.Symbol),
				l.Asset.Decimals,
				l.Asset.Residency,
				price,
				color.HiBlackString(address))
		}
	}

	fmt.Println("\n" + strings.Repeat("=", 90))
	fmt.Printf("\nTotal: %d tokens across %d blockchains\n\n", len(listings), len(chains))
}
