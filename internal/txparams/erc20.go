package txparams

import (
	"math/big"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

const erc20TransferABI = `[
	{"name":"transfer","type":"function","stateMutability":"nonpayable","inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"outputs":[{"name":"","type":"bool"}]}
]`

var erc20ABI = mustABI(erc20TransferABI)

func mustABI(raw string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(raw))
	if err != nil {
		panic(err)
	}
	return parsed
}

// EncodeERC20Transfer returns calldata for transfer(recipient, amount).
// A malformed recipient or amount yields the empty calldata "0x".
func EncodeERC20Transfer(recipient, amount string) string {
	recipient = strings.TrimSpace(recipient)
	if !common.IsHexAddress(recipient) || !strings.HasPrefix(strings.ToLower(recipient), "0x") {
		return "0x"
	}
	value, ok := new(big.Int).SetString(strings.TrimSpace(amount), 10)
	if !ok || value.Sign() < 0 || value.BitLen() > 256 {
		return "0x"
	}
	data, err := erc20ABI.Pack("transfer", common.HexToAddress(recipient), value)
	if err != nil {
		return "0x"
	}
	return hexutil.Encode(data)
}
