package model

import (
	"encoding/json"

	"github.com/ggonzalez94/swap-router/internal/id"
)

// TransactionParams is the unsigned transfer the caller must sign to fund a
// route. There is exactly one implementation per chain family; the JSON form
// carries a "family" discriminator.
type TransactionParams interface {
	Family() id.Family
	isTransactionParams()
}

type EVMTransactionParams struct {
	Chain    string `json:"chain"`
	From     string `json:"from"`
	To       string `json:"to"`
	Value    string `json:"value"`
	Data     string `json:"data"`
	GasLimit string `json:"gas_limit,omitempty"`
	GasPrice string `json:"gas_price,omitempty"`
}

type SolanaTransactionParams struct {
	Chain          string `json:"chain"`
	From           string `json:"from"`
	To             string `json:"to"`
	Value          string `json:"value"`
	SPLTokenMint   string `json:"spl_token_mint,omitempty"`
	SPLTokenAmount string `json:"spl_token_amount,omitempty"`
	Decimals       *int   `json:"decimals,omitempty"`
	// VersionedTransaction is a base64 transaction built by the venue, ready to sign.
	VersionedTransaction string `json:"versioned_transaction,omitempty"`
}

type BitcoinTransactionParams struct {
	Chain    string `json:"chain"`
	To       string `json:"to"`
	Value    string `json:"value"`
	RefundTo string `json:"refund_to"`
}

type CardanoTransactionParams struct {
	Chain    string `json:"chain"`
	To       string `json:"to"`
	Value    string `json:"value"`
	RefundTo string `json:"refund_to"`
}

type ZcashTransactionParams struct {
	Chain    string `json:"chain"`
	To       string `json:"to"`
	Value    string `json:"value"`
	RefundTo string `json:"refund_to"`
}

func (EVMTransactionParams) Family() id.Family     { return id.FamilyEVM }
func (SolanaTransactionParams) Family() id.Family  { return id.FamilySolana }
func (BitcoinTransactionParams) Family() id.Family { return id.FamilyBitcoin }
func (CardanoTransactionParams) Family() id.Family { return id.FamilyCardano }
func (ZcashTransactionParams) Family() id.Family   { return id.FamilyZcash }

func (EVMTransactionParams) isTransactionParams()     {}
func (SolanaTransactionParams) isTransactionParams()  {}
func (BitcoinTransactionParams) isTransactionParams() {}
func (CardanoTransactionParams) isTransactionParams() {}
func (ZcashTransactionParams) isTransactionParams()   {}

func (p EVMTransactionParams) MarshalJSON() ([]byte, error) {
	type alias EVMTransactionParams
	return json.Marshal(struct {
		Family id.Family `json:"family"`
		alias
	}{id.FamilyEVM, alias(p)})
}

func (p SolanaTransactionParams) MarshalJSON() ([]byte, error) {
	type alias SolanaTransactionParams
	return json.Marshal(struct {
		Family id.Family `json:"family"`
		alias
	}{id.FamilySolana, alias(p)})
}

func (p BitcoinTransactionParams) MarshalJSON() ([]byte, error) {
	type alias BitcoinTransactionParams
	return json.Marshal(struct {
		Family id.Family `json:"family"`
		alias
	}{id.FamilyBitcoin, alias(p)})
}

func (p CardanoTransactionParams) MarshalJSON() ([]byte, error) {
	type alias CardanoTransactionParams
	return json.Marshal(struct {
		Family id.Family `json:"family"`
		alias
	}{id.FamilyCardano, alias(p)})
}

func (p ZcashTransactionParams) MarshalJSON() ([]byte, error) {
	type alias ZcashTransactionParams
	return json.Marshal(struct {
		Family id.Family `json:"family"`
		alias
	}{id.FamilyZcash, alias(p)})
}
