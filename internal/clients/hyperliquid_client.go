package clients

import (
	"context"
	"crypto/ecdsa"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/pkg/errors"
	hyperliquid "github.com/sonirico/go-hyperliquid"
)

const (
	HyperliquidMainnetURL = "https://api.hyperliquid.xyz"
	HyperliquidTestnetURL = "https://api.hyperliquid-testnet.xyz"
)

type HyperliquidClient struct {
	exchange    *hyperliquid.Exchange
	accountAddr string
}

// NewHyperliquidClient derives the account address from the private key. An empty baseURL
// selects mainnet.
func NewHyperliquidClient(privateKeyHex string, baseURL string) (*HyperliquidClient, error) {
	if baseURL == "" {
		baseURL = HyperliquidMainnetURL
	}

	accountAddr, privateKey, err := parseHyperliquidKey(privateKeyHex)
	if err != nil {
		return nil, err
	}

	// Info and SpotMeta are fetched lazily by the SDK
	ex := hyperliquid.NewExchange(
		context.Background(),
		privateKey,
		baseURL,
		nil,
		"",
		accountAddr,
		nil,
	)

	return &HyperliquidClient{exchange: ex, accountAddr: accountAddr}, nil
}

func parseHyperliquidKey(privateKeyHex string) (string, *ecdsa.PrivateKey, error) {
	key := strings.TrimSpace(privateKeyHex)
	key = strings.TrimPrefix(strings.TrimPrefix(key, "0x"), "0X")

	privateKey, err := crypto.HexToECDSA(key)
	if err != nil {
		return "", nil, errors.Wrap(err, "invalid hyperliquid private key")
	}

	pubECDSA, ok := privateKey.Public().(*ecdsa.PublicKey)
	if !ok {
		return "", nil, errors.New("error casting public key to ECDSA")
	}

	return crypto.PubkeyToAddress(*pubECDSA).Hex(), privateKey, nil
}

func (c *HyperliquidClient) Exchange() *hyperliquid.Exchange { return c.exchange }
func (c *HyperliquidClient) Info() *hyperliquid.Info         { return c.exchange.Info() }
func (c *HyperliquidClient) AccountAddress() string          { return c.accountAddr }
