package proposal

import (
	"errors"
	"fmt"
	"strings"
)

// ActionTag marks a description as an asset exchange
const ActionTag = "asset-exchange"

const fieldSeparator = "<br>"

// ErrNotExchange is returned when decoding a description of another proposal type
var ErrNotExchange = errors.New("proposal is not an asset exchange")

// Description is the machine-readable summary stored in the proposal
type Description struct {
	Action         string
	Notes          string
	TokenIn        string
	TokenInSymbol  string
	TokenOut       string
	TokenOutSymbol string
	AmountIn       string
	AmountOut      string
	Slippage       string
	QuoteDeadline  string
	TimeEstimate   string
	DepositAddress string
	Signature      string
}

type descriptionField struct {
	key string
	ref func(d *Description) *string
}

var descriptionFields = []descriptionField{
	{"Proposal Action", func(d *Description) *string { return &d.Action }},
	{"Notes", func(d *Description) *string { return &d.Notes }},
	{"Token In", func(d *Description) *string { return &d.TokenIn }},
	{"Token In Symbol", func(d *Description) *string { return &d.TokenInSymbol }},
	{"Token Out", func(d *Description) *string { return &d.TokenOut }},
	{"Token Out Symbol", func(d *Description) *string { return &d.TokenOutSymbol }},
	{"Amount In", func(d *Description) *string { return &d.AmountIn }},
	{"Amount Out", func(d *Description) *string { return &d.AmountOut }},
	{"Slippage", func(d *Description) *string { return &d.Slippage }},
	{"Quote Deadline", func(d *Description) *string { return &d.QuoteDeadline }},
	{"Time Estimate", func(d *Description) *string { return &d.TimeEstimate }},
	{"Deposit Address", func(d *Description) *string { return &d.DepositAddress }},
	{"Signature", func(d *Description) *string { return &d.Signature }},
}

// Encode renders the description as "* Key: value" lines joined by <br>.
// Empty fields are left out.
func (d Description) Encode() string {
	lines := make([]string, 0, len(descriptionFields))
	for _, f := range descriptionFields {
		value := sanitize(*f.ref(&d))
		if value == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("* %s: %s", f.key, value))
	}
	return strings.Join(lines, " "+fieldSeparator)
}

func sanitize(v string) string {
	v = strings.ReplaceAll(v, fieldSeparator, " ")
	v = strings.ReplaceAll(v, "\n", " ")
	return strings.TrimSpace(v)
}

// ParseFields splits an encoded description into its key/value pairs
func ParseFields(encoded string) map[string]string {
	fields := make(map[string]string)
	for _, part := range strings.Split(encoded, fieldSeparator) {
		part = strings.TrimSpace(part)
		part = strings.TrimPrefix(part, "*")
		idx := strings.Index(part, ":")
		if idx <= 0 {
			continue
		}
		key := strings.TrimSpace(part[:idx])
		fields[key] = strings.TrimSpace(part[idx+1:])
	}
	return fields
}

// DecodeDescription parses an encoded exchange description
func DecodeDescription(encoded string) (Description, error) {
	fields := ParseFields(encoded)

	var d Description
	for _, f := range descriptionFields {
		*f.ref(&d) = fields[f.key]
	}

	if d.Action != ActionTag {
		return Description{}, ErrNotExchange
	}
	return d, nil
}
