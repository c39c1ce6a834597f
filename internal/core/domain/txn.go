package domain

import (
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// SelectorLength is the number of calldata bytes identifying the invoked method.
const SelectorLength = 4

// EmptySelector is reported for transactions without calldata (plain transfers).
const EmptySelector = "0x"

// Transaction is a normalized explorer transaction record.
type Transaction struct {
	Hash        string `json:"hash"`
	BlockNumber uint64 `json:"block_number"`
	Timestamp   int64  `json:"timestamp"`
	From        string `json:"from"`
	To          string `json:"to"`
	Value       string `json:"value"` // base units, decimal integer string
	Input       string `json:"input"` // raw calldata, hex
}

// MethodSelector returns the 0x-prefixed hex of the first calldata bytes.
func (t Transaction) MethodSelector() string {
	data := common.FromHex(strings.TrimSpace(t.Input))
	if len(data) < SelectorLength {
		return EmptySelector
	}
	return hexutil.Encode(data[:SelectorLength])
}

// ShortHash is the prefix shown in notifications.
func (t Transaction) ShortHash() string {
	if len(t.Hash) > 10 {
		return t.Hash[:10]
	}
	return t.Hash
}
