package proposal

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"treasury-exchange/pkg/feedback"
	"treasury-exchange/pkg/types"
	"treasury-exchange/pkg/units"
)

// Config holds the contracts the builder targets
type Config struct {
	IntentsContract string
	WrapContract    string
	// RegisterStorage prepends a storage_deposit registering the intents
	// contract on the token before transfer-with-callback.
	RegisterStorage bool
}

// Builder turns committed quotes into proposals. It does no I/O.
type Builder struct {
	cfg Config
}

// NewBuilder creates a builder, filling in mainnet contracts
func NewBuilder(cfg Config) *Builder {
	if cfg.IntentsContract == "" {
		cfg.IntentsContract = DefaultIntentsContract
	}
	if cfg.WrapContract == "" {
		cfg.WrapContract = DefaultWrapContract
	}
	return &Builder{cfg: cfg}
}

// Request is the input to Build
type Request struct {
	Quote           *types.Quote
	Source          types.Asset
	Destination     types.Asset
	SlippagePercent decimal.Decimal
	TreasuryAccount string
}

// Build compiles the request into a proposal. A missing committed quote or
// treasury account is a caller bug and is reported as an error.
func (b *Builder) Build(req Request) (*Proposal, error) {
	if !req.Quote.Committed() {
		return nil, feedback.ErrNoCommittedQuote
	}
	if req.TreasuryAccount == "" {
		return nil, feedback.ErrNoTreasuryAccount
	}

	var (
		call FunctionCall
		err  error
	)
	switch kind := req.Source.Kind(); kind {
	case types.KindNative:
		call, err = b.nativeCall(req.Quote)
	case types.KindFungible:
		call, err = b.fungibleCall(req.Source, req.Quote)
	case types.KindIntents:
		call, err = b.intentsCall(req.Source, req.Quote)
	default:
		err = fmt.Errorf("unsupported asset kind %s", kind)
	}
	if err != nil {
		return nil, err
	}

	return &Proposal{
		Description: describe(req).Encode(),
		Kind:        Kind{FunctionCall: call},
	}, nil
}

// nativeCall wraps NEAR and sends the wrapped amount to the intents contract
func (b *Builder) nativeCall(q *types.Quote) (FunctionCall, error) {
	wrapArgs, err := encodeArgs(nearDepositArgs{})
	if err != nil {
		return FunctionCall{}, err
	}

	actions := []Action{{
		MethodName: MethodNearDeposit,
		Args:       wrapArgs,
		Deposit:    q.AmountIn,
		Gas:        GasSetup,
	}}

	transfer, err := b.transferCallActions(q, "nep141:"+b.cfg.WrapContract)
	if err != nil {
		return FunctionCall{}, err
	}

	return FunctionCall{
		ReceiverID: b.cfg.WrapContract,
		Actions:    append(actions, transfer...),
	}, nil
}

// fungibleCall sends a NEAR token to the intents contract from its own contract
func (b *Builder) fungibleCall(source types.Asset, q *types.Quote) (FunctionCall, error) {
	actions, err := b.transferCallActions(q, "")
	if err != nil {
		return FunctionCall{}, err
	}
	return FunctionCall{
		ReceiverID: source.Address,
		Actions:    actions,
	}, nil
}

// intentsCall moves an intents-held token straight to the deposit address
func (b *Builder) intentsCall(source types.Asset, q *types.Quote) (FunctionCall, error) {
	args, err := encodeArgs(mtTransferArgs{
		ReceiverID: q.DepositAddress,
		TokenID:    source.Address,
		Amount:     q.AmountIn,
	})
	if err != nil {
		return FunctionCall{}, err
	}

	return FunctionCall{
		ReceiverID: b.cfg.IntentsContract,
		Actions: []Action{{
			MethodName: MethodMtTransfer,
			Args:       args,
			Deposit:    OneYocto,
			Gas:        GasTransfer,
		}},
	}, nil
}

// transferCallActions returns the optional registration followed by
// ft_transfer_call into the intents contract
func (b *Builder) transferCallActions(q *types.Quote, tokenID string) ([]Action, error) {
	var actions []Action

	if b.cfg.RegisterStorage {
		args, err := encodeArgs(storageDepositArgs{
			AccountID:        b.cfg.IntentsContract,
			RegistrationOnly: true,
		})
		if err != nil {
			return nil, err
		}
		actions = append(actions, Action{
			MethodName: MethodStorageDeposit,
			Args:       args,
			Deposit:    StorageDepositYocto,
			Gas:        GasSetup,
		})
	}

	msg, err := jsonString(transferMessage{ReceiverID: q.DepositAddress, TokenID: tokenID})
	if err != nil {
		return nil, err
	}
	args, err := encodeArgs(ftTransferCallArgs{
		ReceiverID: b.cfg.IntentsContract,
		Amount:     q.AmountIn,
		Msg:        msg,
	})
	if err != nil {
		return nil, err
	}

	return append(actions, Action{
		MethodName: MethodFtTransferCall,
		Args:       args,
		Deposit:    OneYocto,
		Gas:        GasTransfer,
	}), nil
}

func describe(req Request) Description {
	q := req.Quote
	deadline := q.Deadline.UTC().Format(time.RFC3339)

	return Description{
		Action: ActionTag,
		Notes: fmt.Sprintf("Must be executed before %s for transferring tokens to 1Click's deposit address for swap execution.",
			deadline),
		TokenIn:        req.Source.Address,
		TokenInSymbol:  req.Source.Symbol,
		TokenOut:       req.Destination.Address,
		TokenOutSymbol: req.Destination.Symbol,
		AmountIn:       displayAmount(q.AmountInFormatted, q.AmountIn, req.Source.Decimals),
		AmountOut:      displayAmount(q.AmountOutFormatted, q.AmountOut, req.Destination.Decimals),
		Slippage:       req.SlippagePercent.String(),
		QuoteDeadline:  deadline,
		TimeEstimate:   strconv.FormatInt(q.TimeEstimate, 10),
		DepositAddress: q.DepositAddress,
		Signature:      q.Signature,
	}
}

func displayAmount(formatted, raw string, decimals int32) string {
	if formatted != "" {
		return formatted
	}
	s, err := units.FromSmallestUnits(raw, decimals)
	if err != nil {
		return raw
	}
	return s
}
