package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	oneclick "github.com/defuse-protocol/one-click-sdk-go"
	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"

	"treasury-exchange/pkg/types"
	"treasury-exchange/pkg/units"
)

var log zerolog.Logger

func init() {
	out := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	log = zerolog.New(out).With().Timestamp().Str("component", "client").Logger()
}

const (
	DefaultBaseURL            = "https://1click.chaindefuser.com"
	DefaultWrapContract       = "wrap.near"
	DefaultQuoteWaitingTimeMs = 3000

	swapTypeExactInput = "EXACT_INPUT"

	// Deposit, refund and recipient modes understood by the 1Click API
	ModeOriginChain = "ORIGIN_CHAIN"
	// ModeDestinationChain is the API's recipientType for delivery on the
	// destination chain; it rejects ORIGIN_CHAIN as a recipient type.
	ModeDestinationChain = "DESTINATION_CHAIN"
	ModeIntents          = "INTENTS"

	quoteDeadline = 24 * time.Hour

	signaturePrefix = "ed25519:"
	signatureLength = 64
)

// Options configures the 1Click client
type Options struct {
	BaseURL            string
	JWTToken           string
	WrapContract       string
	QuoteWaitingTimeMs int
	Timeout            time.Duration
	HTTPClient         *http.Client
	Now                func() time.Time
}

// OneClickClient wraps the 1Click SDK
type OneClickClient struct {
	client       *oneclick.APIClient
	token        string
	wrapContract string
	waitMs       int
	now          func() time.Time
}

// NewOneClickClient creates a new 1Click API client
func NewOneClickClient(opts Options) *OneClickClient {
	config := oneclick.NewConfiguration()

	if opts.BaseURL != "" {
		config.Servers = oneclick.ServerConfigurations{{URL: strings.TrimRight(opts.BaseURL, "/")}}
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: opts.Timeout}
	}
	config.HTTPClient = httpClient

	if opts.WrapContract == "" {
		opts.WrapContract = DefaultWrapContract
	}
	if opts.QuoteWaitingTimeMs <= 0 {
		opts.QuoteWaitingTimeMs = DefaultQuoteWaitingTimeMs
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &OneClickClient{
		client:       oneclick.NewAPIClient(config),
		token:        opts.JWTToken,
		wrapContract: opts.WrapContract,
		waitMs:       opts.QuoteWaitingTimeMs,
		now:          opts.Now,
	}
}

// authorize attaches the bearer token when one is configured
func (c *OneClickClient) authorize(ctx context.Context) context.Context {
	if c.token == "" {
		return ctx
	}
	return context.WithValue(ctx, oneclick.ContextAccessToken, c.token)
}

// GetSupportedTokens retrieves all supported tokens
func (c *OneClickClient) GetSupportedTokens(ctx context.Context) ([]oneclick.TokenResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetTokens(c.authorize(ctx)).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", apiError(httpResp, err))
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return resp, nil
}

// FetchQuote requests a quote for p. It returns (nil, nil) without touching
// the network when source and destination are the same asset.
func (c *OneClickClient) FetchQuote(ctx context.Context, p types.QuoteParams) (*types.Quote, error) {
	if p.Source.Same(p.Destination) {
		return nil, nil
	}

	quoteReq, err := buildQuoteRequest(p, c.wrapContract, c.waitMs, c.now())
	if err != nil {
		return nil, err
	}

	log.Debug().
		Bool("dry", p.Dry).
		Str("origin", quoteReq.GetOriginAsset()).
		Str("destination", quoteReq.GetDestinationAsset()).
		Str("amount", quoteReq.GetAmount()).
		Msg("Requesting quote")

	resp, httpResp, err := c.client.OneClickAPI.GetQuote(c.authorize(ctx)).QuoteRequest(*quoteReq).Execute()
	if err != nil {
		return nil, apiError(httpResp, err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode < 200 || httpResp.StatusCode >= 300 {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	if resp == nil {
		return nil, fmt.Errorf("empty quote response")
	}

	quote := fromResponse(resp, p.Dry)
	if !quote.Dry {
		if quote.DepositAddress == "" {
			return nil, fmt.Errorf("committed quote has no deposit address")
		}
		if err := ValidateSignature(quote.Signature); err != nil {
			return nil, err
		}
	}

	return quote, nil
}

// buildQuoteRequest translates quote parameters into the wire request
func buildQuoteRequest(p types.QuoteParams, wrapContract string, waitMs int, now time.Time) (*oneclick.QuoteRequest, error) {
	amount, err := units.ToSmallestUnits(p.Amount, p.Source.Decimals)
	if err != nil {
		return nil, fmt.Errorf("invalid amount: %w", err)
	}
	if p.TreasuryAccount == "" {
		return nil, fmt.Errorf("treasury account is required to request a quote")
	}

	slippage := units.SlippageBasisPoints(p.SlippagePercent)

	quoteReq := oneclick.NewQuoteRequest(
		p.Dry,
		swapTypeExactInput,
		float32(slippage),
		AssetID(p.Source, wrapContract),
		depositMode(p.Source),
		AssetID(p.Destination, wrapContract),
		amount,
		p.TreasuryAccount,
		depositMode(p.Source),
		p.TreasuryAccount,
		recipientMode(p.Destination),
		now.Add(quoteDeadline),
	)
	quoteReq.SetQuoteWaitingTimeMs(float32(waitMs))

	return quoteReq, nil
}

// AssetID returns the identifier the 1Click API uses for a.
// The native currency is sent as its wrapped token.
func AssetID(a types.Asset, wrapContract string) string {
	switch a.Kind() {
	case types.KindNative:
		return "nep141:" + wrapContract
	case types.KindFungible:
		if strings.Contains(a.Address, ":") {
			return a.Address
		}
		return "nep141:" + a.Address
	default:
		return a.Address
	}
}

// depositMode selects how funds leave (and are refunded to) the treasury
func depositMode(a types.Asset) string {
	if a.Residency == types.ResidencyIntents {
		return ModeIntents
	}
	return ModeOriginChain
}

// recipientMode selects how funds reach the treasury
func recipientMode(a types.Asset) string {
	if a.Residency == types.ResidencyIntents {
		return ModeIntents
	}
	return ModeDestinationChain
}

func fromResponse(resp *oneclick.QuoteResponse, dry bool) *types.Quote {
	details := resp.GetQuote()

	return &types.Quote{
		AmountIn:           details.GetAmountIn(),
		AmountInFormatted:  details.GetAmountInFormatted(),
		AmountInUSD:        details.GetAmountInUsd(),
		AmountOut:          details.GetAmountOut(),
		AmountOutFormatted: details.GetAmountOutFormatted(),
		AmountOutUSD:       details.GetAmountOutUsd(),
		MinAmountOut:       details.GetMinAmountOut(),
		DepositAddress:     details.GetDepositAddress(),
		TimeEstimate:       int64(details.GetTimeEstimate()),
		Deadline:           details.GetDeadline(),
		Signature:          resp.GetSignature(),
		Dry:                dry,
	}
}

// ValidateSignature checks that sig is an ed25519 signature in base58
func ValidateSignature(sig string) error {
	if !strings.HasPrefix(sig, signaturePrefix) {
		return fmt.Errorf("quote signature %q is not an ed25519 signature", sig)
	}
	raw, err := base58.Decode(strings.TrimPrefix(sig, signaturePrefix))
	if err != nil {
		return fmt.Errorf("quote signature is not valid base58: %w", err)
	}
	if len(raw) != signatureLength {
		return fmt.Errorf("quote signature has %d bytes, want %d", len(raw), signatureLength)
	}
	return nil
}

// apiError extracts the upstream message from a failed call
func apiError(httpResp *http.Response, err error) error {
	if httpResp == nil || httpResp.Body == nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer httpResp.Body.Close()

	bodyBytes, readErr := io.ReadAll(httpResp.Body)
	if readErr != nil || len(bodyBytes) == 0 {
		return fmt.Errorf("request failed (status: %d): %w", httpResp.StatusCode, err)
	}

	var errorResp map[string]interface{}
	if jsonErr := json.Unmarshal(bodyBytes, &errorResp); jsonErr == nil {
		if message, ok := errorResp["message"].(string); ok {
			return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, message)
		}
		if errors, ok := errorResp["errors"]; ok {
			return fmt.Errorf("API error (status %d): %v", httpResp.StatusCode, errors)
		}
	}

	return fmt.Errorf("API error (status %d): %s", httpResp.StatusCode, strings.TrimSpace(string(bodyBytes)))
}

// GetSwapStatus checks the execution status of a swap
func (c *OneClickClient) GetSwapStatus(ctx context.Context, depositAddress string) (*oneclick.GetExecutionStatusResponse, error) {
	resp, httpResp, err := c.client.OneClickAPI.GetExecutionStatus(c.authorize(ctx)).DepositAddress(depositAddress).Execute()
	if err != nil {
		return nil, fmt.Errorf("failed to get status: %w", apiError(httpResp, err))
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("API returned status code %d", httpResp.StatusCode)
	}

	return resp, nil
}
