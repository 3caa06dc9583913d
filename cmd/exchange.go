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
	"github.com/spf13/cobra"

	"treasury-exchange/config"
	"treasury-exchange/pkg/feedback"
	"treasury-exchange/pkg/history"
	"treasury-exchange/pkg/parser"
	"treasury-exchange/pkg/pricing"
	"treasury-exchange/pkg/proposal"
	"treasury-exchange/pkg/wallet"
	"treasury-exchange/pkg/wizard"
)

var (
	exchangeSlippage string
	exchangeOut      string
	noConfirm        bool
)

var exchangeCmd = &cobra.Command{
	Use:     "exchange <amount> <source-token> to <dest-token>",
	Aliases: []string{"swap"},
	Short:   "Create a DAO proposal exchanging treasury assets",
	Long: `Exchange treasury assets through NEAR Intents.

A preview quote is fetched first. Once confirmed, a binding quote with a
deposit address is requested and turned into an add_proposal call for the
treasury DAO. The call is written to --out, or printed, for signing.

IMPORTANT:
  - The binding quote expires. The proposal must be approved and executed
    before the quote deadline shown in its description.
  - treasury_account must be configured.

Examples:
  near-treasury exchange 2.5 NEAR to intents:USDC
  near-treasury exchange 100 USDt to NEAR --slippage 1 --out proposal.json
  near-treasury exchange 50 intents:USDC@eth to USDt --yes`,
	Args: cobra.MinimumNArgs(1),
	Run:  runExchange,
}

func init() {
	rootCmd.AddCommand(exchangeCmd)

	exchangeCmd.Flags().StringVar(&exchangeSlippage, "slippage", "0.5", "Slippage tolerance in percent")
	exchangeCmd.Flags().StringVarP(&exchangeOut, "out", "o", "", "Write the add_proposal call to this file instead of stdout")
	exchangeCmd.Flags().BoolVarP(&noConfirm, "yes", "y", false, "Skip confirmation prompts")
}

// confirmingSubmitter asks before handing a call to the signer. Declining
// counts as a user rejection.
type confirmingSubmitter struct {
	next wallet.Submitter
	skip bool
}

func (c confirmingSubmitter) Submit(ctx context.Context, call wallet.Call) (wallet.Result, error) {
	if !c.skip {
		fmt.Printf("  Proposal call:     %s on %s\n", call.MethodName, color.CyanString(call.ReceiverID))
		fmt.Printf("  Bond:              %s yoctoNEAR\n", call.Deposit)
		if !confirm("Submit this proposal?") {
			return wallet.Result{}, feedback.ErrUserRejected
		}
	}
	return c.next.Submit(ctx, call)
}

func runExchange(cmd *cobra.Command, args []string) {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	req, err := parser.ParseExchangeCommand(strings.Join(args, " "))
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	slippage, err := parseSlippage(exchangeSlippage)
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

	hist, err := history.NewManager(cfg.HistoryPath)
	if err != nil {
		printError(err)
		os.Exit(1)
	}

	var signer wallet.Submitter = wallet.StdoutSubmitter{Out: os.Stdout}
	if exchangeOut != "" {
		signer = wallet.FileSubmitter{Path: exchangeOut}
	}
	submitter := wallet.NewManager(cfg.TreasuryAccount, wallet.StaticPolicy{Bond: cfg.ProposalBond},
		confirmingSubmitter{next: signer, skip: noConfirm || jsonOutput})

	session := wizard.NewSession(apiClient, wizard.Config{
		TreasuryAccount: cfg.TreasuryAccount,
		ExploreInterval: cfg.DryRefreshInterval,
		CommitInterval:  cfg.LiveRefreshInterval,
		Debounce:        cfg.Debounce,
		RequestTimeout:  cfg.RequestTimeout,
		Metrics:         startMetrics(ctx, cfg),
		Builder: proposal.NewBuilder(proposal.Config{
			IntentsContract: cfg.IntentsContract,
			WrapContract:    cfg.WrapContract,
			RegisterStorage: cfg.RegisterStorage,
		}),
		Submitter: submitter,
		Recorder:  hist,
	})
	defer session.Close()

	store := session.Store()
	store.SetSource(source)
	store.SetDestination(dest)
	store.SetSlippage(slippage)
	store.SetAmount(req.Amount)

	wait := cfg.Debounce + 2*cfg.RequestTimeout

	waitCtx, waitCancel := context.WithTimeout(ctx, wait)
	preview, err := waitForQuote(waitCtx, session.Explore(), jsonOutput)
	waitCancel()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if !jsonOutput {
		displayQuote(preview.Quote, source, dest, slippage, false, prices)
		if !noConfirm && !confirm("Request a binding quote for this exchange?") {
			fmt.Println("Exchange cancelled.")
			return
		}
	}

	if err := session.Proceed(); err != nil {
		printError(fmt.Errorf("%s", feedback.Describe(err)))
		os.Exit(1)
	}

	waitCtx, waitCancel = context.WithTimeout(ctx, wait)
	live, err := waitForQuote(waitCtx, session.Commit(), jsonOutput)
	waitCancel()
	if err != nil {
		printError(err)
		os.Exit(1)
	}
	if !jsonOutput {
		displayQuote(live.Quote, source, dest, slippage, false, prices)
	}

	outcome, err := session.Submit(ctx)
	if err != nil {
		printError(fmt.Errorf("%s", feedback.Describe(err)))
		os.Exit(1)
	}
	if outcome.Rejected {
		fmt.Println("Proposal not submitted.")
		return
	}

	if jsonOutput {
		output := map[string]interface{}{
			"location":        outcome.Result.Location,
			"deposit_address": live.Quote.DepositAddress,
			"amount_in":       live.Quote.AmountInFormatted,
			"amount_out":      live.Quote.AmountOutFormatted,
			"deadline":        live.Quote.Deadline,
		}
		if outcome.Entry != nil {
			output["id"] = outcome.Entry.ID
		}
		jsonData, _ := json.MarshalIndent(output, "", "  ")
		fmt.Println(string(jsonData))
		return
	}

	if exchangeOut != "" {
		printSuccess(fmt.Sprintf("Proposal call written to %s", color.CyanString(outcome.Result.Location)))
	}
	fmt.Printf("Once the proposal is executed, track the exchange with:\n")
	fmt.Printf("  near-treasury status %s\n\n", live.Quote.DepositAddress)
}
