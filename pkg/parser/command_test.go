package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury-exchange/pkg/feedback"
	"treasury-exchange/pkg/types"
)

func TestParseExchangeCommand(t *testing.T) {
	tests := []struct {
		command string
		want    types.ExchangeRequest
	}{
		{
			"2.5 NEAR to USDC",
			types.ExchangeRequest{Amount: "2.5", Source: types.TokenRef{Symbol: "NEAR"}, Destination: types.TokenRef{Symbol: "USDC"}},
		},
		{
			"exchange 100 usdt to intents:usdc",
			types.ExchangeRequest{Amount: "100", Source: types.TokenRef{Symbol: "USDT"}, Destination: types.TokenRef{Symbol: "USDC", Intents: true}},
		},
		{
			"  10 USDC@eth TO near ",
			types.ExchangeRequest{Amount: "10", Source: types.TokenRef{Symbol: "USDC", Network: "eth"}, Destination: types.TokenRef{Symbol: "NEAR"}},
		},
		{
			"swap 0.5 WETH to NEAR",
			types.ExchangeRequest{Amount: "0.5", Source: types.TokenRef{Symbol: "ETH"}, Destination: types.TokenRef{Symbol: "NEAR"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.command, func(t *testing.T) {
			got, err := ParseExchangeCommand(tt.command)
			require.NoError(t, err)
			assert.Equal(t, tt.want, *got)
		})
	}
}

func TestParseExchangeCommandErrors(t *testing.T) {
	_, err := ParseExchangeCommand("NEAR to USDC")
	assert.Error(t, err)

	_, err = ParseExchangeCommand("abc NEAR to USDC")
	assert.ErrorIs(t, err, feedback.ErrInvalidAmount)

	_, err = ParseExchangeCommand("0 NEAR to USDC")
	assert.ErrorIs(t, err, feedback.ErrNonPositiveAmount)

	_, err = ParseExchangeCommand("1 NEAR to NEAR")
	assert.ErrorIs(t, err, feedback.ErrSameAsset)

	// the intents-held variant is a different asset
	_, err = ParseExchangeCommand("1 USDC to intents:USDC")
	assert.NoError(t, err)

	_, err = ParseExchangeCommand("1 NE$R to USDC")
	var inputErr *feedback.InputError
	require.ErrorAs(t, err, &inputErr)
	assert.Equal(t, "source", inputErr.Field)
}
