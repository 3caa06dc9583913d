// Package proposal compiles a committed quote into the multi-action DAO
// proposal that moves treasury funds to the quote's deposit address.
package proposal

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
)

// Protocol constants. Gas and deposits are decimal strings as the DAO expects.
const (
	DefaultIntentsContract = "intents.near"
	DefaultWrapContract    = "wrap.near"

	GasTransfer = "150000000000000" // 150 Tgas for the fund-moving action
	GasSetup    = "10000000000000"  // 10 Tgas for wrap and registration

	OneYocto            = "1"
	StorageDepositYocto = "1250000000000000000000" // 0.00125 NEAR

	MethodNearDeposit    = "near_deposit"
	MethodStorageDeposit = "storage_deposit"
	MethodFtTransferCall = "ft_transfer_call"
	MethodMtTransfer     = "mt_transfer"
)

// Action is a single function call inside a proposal
type Action struct {
	MethodName string `json:"method_name"`
	Args       string `json:"args"` // base64 JSON
	Deposit    string `json:"deposit"`
	Gas        string `json:"gas"`
}

// DecodeArgs unmarshals the base64 JSON arguments into v
func (a Action) DecodeArgs(v interface{}) error {
	raw, err := base64.StdEncoding.DecodeString(a.Args)
	if err != nil {
		return fmt.Errorf("args are not base64: %w", err)
	}
	return json.Unmarshal(raw, v)
}

// FunctionCall is the proposal kind used for exchanges
type FunctionCall struct {
	ReceiverID string   `json:"receiver_id"`
	Actions    []Action `json:"actions"`
}

// Kind wraps the function call the way the DAO contract serialises it
type Kind struct {
	FunctionCall FunctionCall `json:"FunctionCall"`
}

// Proposal is a finalised, not yet submitted transaction intent
type Proposal struct {
	Description string `json:"description"`
	Kind        Kind   `json:"kind"`
}

type nearDepositArgs struct{}

type storageDepositArgs struct {
	AccountID        string `json:"account_id"`
	RegistrationOnly bool   `json:"registration_only"`
}

type ftTransferCallArgs struct {
	ReceiverID string `json:"receiver_id"`
	Amount     string `json:"amount"`
	Msg        string `json:"msg"`
}

// transferMessage is the ft_transfer_call payload read by the intents contract
type transferMessage struct {
	ReceiverID string `json:"receiver_id"`
	TokenID    string `json:"token_id,omitempty"`
}

type mtTransferArgs struct {
	ReceiverID string `json:"receiver_id"`
	TokenID    string `json:"token_id"`
	Amount     string `json:"amount"`
}

func encodeArgs(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode args: %w", err)
	}
	return base64.StdEncoding.EncodeToString(raw), nil
}

func jsonString(v interface{}) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("failed to encode message: %w", err)
	}
	return string(raw), nil
}
