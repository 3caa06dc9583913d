package wallet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"treasury-exchange/pkg/feedback"
	"treasury-exchange/pkg/proposal"
)

func sampleProposal() *proposal.Proposal {
	return &proposal.Proposal{
		Description: "* Proposal Action: asset-exchange",
		Kind: proposal.Kind{FunctionCall: proposal.FunctionCall{
			ReceiverID: "intents.near",
			Actions: []proposal.Action{{
				MethodName: "mt_transfer",
				Args:       "e30=",
				Deposit:    "1",
				Gas:        "150000000000000",
			}},
		}},
	}
}

func TestAddProposalCall(t *testing.T) {
	call, err := AddProposalCall("treasury.sputnik-dao.near", sampleProposal(), "100000000000000000000000")
	require.NoError(t, err)

	assert.Equal(t, "treasury.sputnik-dao.near", call.ReceiverID)
	assert.Equal(t, "add_proposal", call.MethodName)
	assert.Equal(t, "100000000000000000000000", call.Deposit)
	assert.Equal(t, "200000000000000", call.Gas)
	assert.JSONEq(t, `{"proposal":{
		"description":"* Proposal Action: asset-exchange",
		"kind":{"FunctionCall":{"receiver_id":"intents.near","actions":[
			{"method_name":"mt_transfer","args":"e30=","deposit":"1","gas":"150000000000000"}
		]}}
	}}`, string(call.Args))
}

func TestAddProposalCallValidation(t *testing.T) {
	_, err := AddProposalCall("", sampleProposal(), "0")
	assert.ErrorIs(t, err, feedback.ErrNoTreasuryAccount)

	_, err = AddProposalCall("dao.near", nil, "0")
	assert.Error(t, err)

	for _, bond := range []string{"-1", "0.5", "abc"} {
		_, err = AddProposalCall("dao.near", sampleProposal(), bond)
		assert.Error(t, err, bond)
	}
}

type stubSubmitter struct {
	calls []Call
	err   error
}

func (s *stubSubmitter) Submit(ctx context.Context, call Call) (Result, error) {
	s.calls = append(s.calls, call)
	if s.err != nil {
		return Result{}, s.err
	}
	return Result{TransactionHash: "hash"}, nil
}

func TestManagerSubmit(t *testing.T) {
	sub := &stubSubmitter{}
	m := NewManager("dao.near", StaticPolicy{Bond: "5"}, sub)

	res, err := m.Submit(context.Background(), sampleProposal())
	require.NoError(t, err)
	assert.Equal(t, "hash", res.TransactionHash)
	require.Len(t, sub.calls, 1)
	assert.Equal(t, "5", sub.calls[0].Deposit)
}

func TestManagerSubmitClassifiesRejection(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		rejected bool
	}{
		{"user rejected", errors.New("User rejected the request"), true},
		{"sentinel", feedback.ErrUserRejected, true},
		{"rpc failure", errors.New("connection reset"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := NewManager("dao.near", StaticPolicy{}, &stubSubmitter{err: tt.err})
			_, err := m.Submit(context.Background(), sampleProposal())
			require.Error(t, err)
			assert.Equal(t, tt.rejected, errors.Is(err, feedback.ErrUserRejected))
		})
	}
}

func TestFileSubmitter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "calls", "exchange.json")
	call, err := AddProposalCall("dao.near", sampleProposal(), "0")
	require.NoError(t, err)

	res, err := FileSubmitter{Path: path}.Submit(context.Background(), call)
	require.NoError(t, err)
	assert.Equal(t, path, res.Location)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var stored Call
	require.NoError(t, json.Unmarshal(data, &stored))
	assert.Equal(t, call.MethodName, stored.MethodName)
	assert.JSONEq(t, string(call.Args), string(stored.Args))
}

func TestStdoutSubmitter(t *testing.T) {
	var buf bytes.Buffer
	call, err := AddProposalCall("dao.near", sampleProposal(), "0")
	require.NoError(t, err)

	_, err = StdoutSubmitter{Out: &buf}.Submit(context.Background(), call)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), `"method_name": "add_proposal"`)
}
