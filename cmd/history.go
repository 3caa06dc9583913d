package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"treasury-exchange/config"
	"treasury-exchange/pkg/history"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show submitted exchange proposals",
	Long: `Show the exchange proposals created from this machine, newest first.

Examples:
  near-treasury history
  near-treasury history --limit 5
  near-treasury history --json`,
	Args: cobra.NoArgs,
	Run:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of entries to show (0 for all)")
}

type historyOutput struct {
	ID             string `json:"id"`
	Created        string `json:"created"`
	DAO            string `json:"dao"`
	Status         string `json:"status"`
	Location       string `json:"location,omitempty"`
	Error          string `json:"error,omitempty"`
	TokenIn        string `json:"token_in"`
	TokenOut       string `json:"token_out"`
	AmountIn       string `json:"amount_in"`
	AmountOut      string `json:"amount_out"`
	Slippage       string `json:"slippage"`
	QuoteDeadline  string `json:"quote_deadline"`
	DepositAddress string `json:"deposit_address"`
}

func runHistory(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := config.Load()
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	hist, err := history.NewManager(cfg.HistoryPath)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	entries := hist.Exchanges()
	if historyLimit > 0 && len(entries) > historyLimit {
		entries = entries[:historyLimit]
	}

	rows := make([]historyOutput, 0, len(entries))
	for _, e := range entries {
		d, err := e.Exchange()
		if err != nil {
			continue
		}
		rows = append(rows, historyOutput{
			ID:             e.ID,
			Created:        e.Created.Format("2006-01-02 15:04:05"),
			DAO:            e.DAO,
			Status:         string(e.Status),
			Location:       e.Location,
			Error:          e.Error,
			TokenIn:        d.TokenInSymbol,
			TokenOut:       d.TokenOutSymbol,
			AmountIn:       d.AmountIn,
			AmountOut:      d.AmountOut,
			Slippage:       d.Slippage,
			QuoteDeadline:  d.QuoteDeadline,
			DepositAddress: d.DepositAddress,
		})
	}

	if jsonOutput {
		jsonData, _ := json.MarshalIndent(rows, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	displayHistory(rows, hist.GetStoragePath())
}

func displayHistory(rows []historyOutput, path string) {
	if len(rows) == 0 {
		fmt.Println("\nNo exchange proposals recorded yet.")
		return
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	color.Green("                          EXCHANGE PROPOSALS")
	fmt.Println(strings.Repeat("=", 80))

	for _, r := range rows {
		fmt.Printf("\n  %s  %s\n", color.HiBlackString(r.Created), historyStatus(r.Status))
		fmt.Printf("  %s %s -> %s %s  (slippage %s)\n",
			r.AmountIn, color.YellowString(r.TokenIn),
			r.AmountOut, color.YellowString(r.TokenOut),
			r.Slippage)
		fmt.Printf("  Treasury:        %s\n", r.DAO)
		fmt.Printf("  Deposit Address: %s\n", color.CyanString(r.DepositAddress))
		fmt.Printf("  Quote Deadline:  %s\n", r.QuoteDeadline)
		if r.Error != "" {
			fmt.Printf("  Error:           %s\n", color.RedString(r.Error))
		}
		fmt.Printf("  ID:              %s\n", color.HiBlackString(r.ID))
	}

	fmt.Println("\n" + strings.Repeat("=", 80))
	fmt.Printf("\nTotal: %d proposals (stored in %s)\n\n", len(rows), path)
}

func historyStatus(status string) string {
	switch history.Status(status) {
	case history.StatusSubmitted:
		return color.GreenString(strings.ToUpper(status))
	case history.StatusRejected:
		return color.YellowString(strings.ToUpper(status))
	case history.StatusFailed:
		return color.RedString(strings.ToUpper(status))
	default:
		return status
	}
}
