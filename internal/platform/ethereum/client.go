// Package ethereum queries account and ERC-20 token balances over a JSON-RPC
// endpoint using go-ethereum's ethclient.
package ethereum

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/shopspring/decimal"
)

// balanceOfSelector is the 4-byte selector of ERC-20 balanceOf(address).
var balanceOfSelector = []byte{0x70, 0xa0, 0x82, 0x31}

// Client wraps an ethclient connection to one Ethereum JSON-RPC endpoint.
type Client struct {
	ec *ethclient.Client
}

// Dial connects to the JSON-RPC endpoint at rawurl.
func Dial(ctx context.Context, rawurl string) (*Client, error) {
	ec, err := ethclient.DialContext(ctx, rawurl)
	if err != nil {
		return nil, fmt.Errorf("ethereum: dial %s: %w", rawurl, err)
	}
	return &Client{ec: ec}, nil
}

// Close tears down the underlying RPC connection.
func (c *Client) Close() {
	c.ec.Close()
}

// ETHBalance returns the ether balance of address in wei at the latest
// block.
func (c *Client) ETHBalance(ctx context.Context, address string) (decimal.Decimal, error) {
	if !common.IsHexAddress(address) {
		return decimal.Zero, fmt.Errorf("ethereum: invalid address %q", address)
	}

	wei, err := c.ec.BalanceAt(ctx, common.HexToAddress(address), nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ethereum: balance of %s: %w", address, err)
	}
	return decimal.NewFromBigInt(wei, 0), nil
}

// TokenBalance returns the ERC-20 balance of holder for the token contract,
// in the token's smallest unit, by calling balanceOf(address) at the latest
// block.
func (c *Client) TokenBalance(ctx context.Context, tokenContract, holder string) (decimal.Decimal, error) {
	if !common.IsHexAddress(tokenContract) {
		return decimal.Zero, fmt.Errorf("ethereum: invalid token contract %q", tokenContract)
	}
	if !common.IsHexAddress(holder) {
		return decimal.Zero, fmt.Errorf("ethereum: invalid holder address %q", holder)
	}

	contract := common.HexToAddress(tokenContract)
	data := make([]byte, 0, 4+32)
	data = append(data, balanceOfSelector...)
	data = append(data, common.LeftPadBytes(common.HexToAddress(holder).Bytes(), 32)...)

	out, err := c.ec.CallContract(ctx, ethereum.CallMsg{
		To:   &contract,
		Data: data,
	}, nil)
	if err != nil {
		return decimal.Zero, fmt.Errorf("ethereum: balanceOf %s for %s: %w", tokenContract, holder, err)
	}
	if len(out) == 0 {
		return decimal.Zero, fmt.Errorf("ethereum: empty balanceOf response from %s", tokenContract)
	}

	return decimal.NewFromBigInt(new(big.Int).SetBytes(out), 0), nil
}
