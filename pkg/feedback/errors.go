// Package feedback holds the exchange error taxonomy and maps raw failures to
// the messages shown to treasury members.
package feedback

import (
	"errors"
	"strings"
)

// Input errors, caught before any network call
var (
	ErrMissingAsset       = errors.New("select a token")
	ErrSameAsset          = errors.New("source and destination assets are the same")
	ErrInvalidAmount      = errors.New("amount is not a valid number")
	ErrNonPositiveAmount  = errors.New("amount must be greater than 0")
	ErrSlippageOutOfRange = errors.New("slippage must be between 0.01% and 100%")
)

// Submission errors
var (
	ErrNoCommittedQuote  = errors.New("no committed quote available for submission")
	ErrNoTreasuryAccount = errors.New("treasury account is not configured")
)

// ErrUserRejected is returned when the signer declines the transaction
var ErrUserRejected = errors.New("transaction rejected by user")

// InputError ties an input error to the field it belongs to
type InputError struct {
	Field string
	Err   error
}

func (e *InputError) Error() string {
	return e.Field + ": " + e.Err.Error()
}

func (e *InputError) Unwrap() error {
	return e.Err
}

// Input wraps err as an error on field
func Input(field string, err error) error {
	return &InputError{Field: field, Err: err}
}

// User-facing quote error templates
const (
	MsgNoRoute             = "No exchange found for this pair. Try a smaller amount or a different token."
	MsgAmountTooLow        = "Amount is too low. Cross-chain exchanges need a higher minimum amount to cover fees."
	MsgInsufficientBalance = "Insufficient balance for this exchange."
	MsgNetwork             = "Network error. Please check your connection and try again."
)

// ClassifyQuoteError maps a raw upstream quote error to a template.
// Unrecognised messages are returned verbatim.
func ClassifyQuoteError(raw string) string {
	msg := strings.ToLower(raw)

	switch {
	case strings.Contains(msg, "no route"),
		strings.Contains(msg, "not supported"),
		strings.Contains(msg, "not valid"):
		return MsgNoRoute
	case strings.Contains(msg, "amount") && strings.Contains(msg, "low"):
		return MsgAmountTooLow
	case strings.Contains(msg, "insufficient"), strings.Contains(msg, "balance"):
		return MsgInsufficientBalance
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "network"):
		return MsgNetwork
	default:
		return raw
	}
}

// Describe returns the message to show for any error out of the quote path
func Describe(err error) string {
	if err == nil {
		return ""
	}
	var inputErr *InputError
	if errors.As(err, &inputErr) {
		return inputErr.Err.Error()
	}
	return ClassifyQuoteError(err.Error())
}

var rejectionPhrases = []string{
	"user rejected",
	"rejected by user",
	"user cancelled",
	"user canceled",
	"user denied",
}

// IsUserRejection tells a deliberate signer rejection apart from real failures
func IsUserRejection(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, phrase := range rejectionPhrases {
		if strings.Contains(msg, phrase) {
			return true
		}
	}
	return false
}
