package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "near-treasury",
	Short: "Exchange treasury assets through NEAR Intents and DAO proposals",
	Long: `near-treasury quotes asset exchanges through the NEAR Intents 1Click API and
turns a binding quote into a DAO proposal that moves treasury funds to the
quote's deposit address once members approve it.

Examples:
  near-treasury tokens --chain near
  near-treasury quote 2.5 NEAR to USDC --slippage 0.5
  near-treasury exchange 100 USDT to intents:USDC --out proposal.json
  near-treasury history
  near-treasury status <deposit-address>`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		verbose, _ := cmd.Flags().GetBool("verbose")
		if verbose {
			zerolog.SetGlobalLevel(zerolog.DebugLevel)
		} else {
			zerolog.SetGlobalLevel(zerolog.InfoLevel)
		}
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log.Logger = zerolog.New(out).With().Timestamp().Str("component", "cmd").Logger()

	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().BoolP("json", "j", false, "Output in JSON format")
}

func printError(err error) {
	fmt.Printf("\nError: %v\n\n", err)
}

func printSuccess(message string) {
	fmt.Printf("\n%s\n\n", message)
}
