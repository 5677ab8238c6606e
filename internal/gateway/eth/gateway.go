package eth

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
	"github.com/Osiyomeoh/CoreYield-sub001/internal/retry"
)

// Config tunes gateway transaction parameters.
type Config struct {
	// GasLimit is applied to every write; the testnet contracts are cheap
	// enough that a flat limit beats per-call estimation failures on
	// not-yet-mined dependencies.
	GasLimit uint64

	// Confirm bounds the receipt polling in WaitConfirmed.
	Confirm retry.Policy
}

// Gateway implements domain.ChainGateway against a live RPC endpoint,
// signing every write locally with the orchestrated wallet's key.
type Gateway struct {
	client *Client
	priv   *ecdsa.PrivateKey
	from   common.Address
	signer types.Signer
	cfg    Config
	logger *slog.Logger

	// nonceMu serializes nonce acquisition and submission so two writes in
	// flight cannot race to the same pending nonce.
	nonceMu sync.Mutex
}

var _ domain.ChainGateway = (*Gateway)(nil)

// New builds a Gateway signing as the given key.
func New(client *Client, priv *ecdsa.PrivateKey, cfg Config, logger *slog.Logger) *Gateway {
	if cfg.GasLimit == 0 {
		cfg.GasLimit = 1_500_000
	}
	if cfg.Confirm.MaxAttempts == 0 {
		cfg.Confirm = retry.Confirmations()
	}
	return &Gateway{
		client: client,
		priv:   priv,
		from:   gethcrypto.PubkeyToAddress(priv.PublicKey),
		signer: types.LatestSignerForChainID(client.ChainID()),
		cfg:    cfg,
		logger: logger.With(slog.String("component", "gateway")),
	}
}

// From returns the signing wallet address.
func (g *Gateway) From() common.Address {
	return g.from
}

// ---------------------------------------------------------------------------
// Reads
// ---------------------------------------------------------------------------

// call packs a view call, executes it at the latest block, and unpacks the
// results.
func (g *Gateway) call(ctx context.Context, contract common.Address, parsed abi.ABI, method string, args ...any) ([]any, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("eth: packing %s: %w", method, err)
	}
	raw, err := g.client.eth.CallContract(ctx, ethereum.CallMsg{From: g.from, To: &contract, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("eth: calling %s on %s: %w", method, contract.Hex(), err)
	}
	out, err := parsed.Unpack(method, raw)
	if err != nil {
		return nil, fmt.Errorf("eth: unpacking %s result: %w", method, err)
	}
	return out, nil
}

func (g *Gateway) BalanceOf(ctx context.Context, token, owner common.Address) (*big.Int, error) {
	out, err := g.call(ctx, token, erc20ABI, "balanceOf", owner)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

func (g *Gateway) AllowanceOf(ctx context.Context, token, owner, spender common.Address) (*big.Int, error) {
	out, err := g.call(ctx, token, erc20ABI, "allowance", owner, spender)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// MarketOf reads the factory's market descriptor for an SY token. A zeroed
// descriptor means the market has never been created and maps to
// domain.ErrMarketNotFound.
func (g *Gateway) MarketOf(ctx context.Context, factory, syToken common.Address) (domain.Market, error) {
	out, err := g.call(ctx, factory, factoryABI, "getMarket", syToken)
	if err != nil {
		return domain.Market{}, err
	}

	sy := *abi.ConvertType(out[0], new(common.Address)).(*common.Address)
	pt := *abi.ConvertType(out[1], new(common.Address)).(*common.Address)
	yt := *abi.ConvertType(out[2], new(common.Address)).(*common.Address)
	maturity := abi.ConvertType(out[3], new(big.Int)).(*big.Int)
	active := *abi.ConvertType(out[4], new(bool)).(*bool)

	if pt == (common.Address{}) && yt == (common.Address{}) {
		return domain.Market{}, domain.ErrMarketNotFound
	}
	return domain.Market{
		SYToken:  sy,
		PTToken:  pt,
		YTToken:  yt,
		Maturity: time.Unix(maturity.Int64(), 0).UTC(),
		Active:   active,
	}, nil
}

func (g *Gateway) ClaimableYieldOf(ctx context.Context, factory, syToken, user common.Address) (*big.Int, error) {
	out, err := g.call(ctx, factory, factoryABI, "getClaimableYield", syToken, user)
	if err != nil {
		return nil, err
	}
	return abi.ConvertType(out[0], new(big.Int)).(*big.Int), nil
}

// ---------------------------------------------------------------------------
// Writes
// ---------------------------------------------------------------------------

// send packs, signs, and submits one transaction. Submission failures are
// wrapped in domain.ErrSubmissionRejected; inclusion outcomes belong to
// WaitConfirmed.
func (g *Gateway) send(ctx context.Context, kind domain.TxKind, to common.Address, parsed abi.ABI, method string, args ...any) (domain.PendingTransaction, error) {
	data, err := parsed.Pack(method, args...)
	if err != nil {
		return domain.PendingTransaction{}, fmt.Errorf("eth: packing %s: %w", method, err)
	}

	g.nonceMu.Lock()
	defer g.nonceMu.Unlock()

	nonce, err := g.client.eth.PendingNonceAt(ctx, g.from)
	if err != nil {
		return domain.PendingTransaction{}, fmt.Errorf("eth: %s: reading nonce: %w: %v", method, domain.ErrSubmissionRejected, err)
	}
	gasPrice, err := g.client.eth.SuggestGasPrice(ctx)
	if err != nil {
		return domain.PendingTransaction{}, fmt.Errorf("eth: %s: suggesting gas price: %w: %v", method, domain.ErrSubmissionRejected, err)
	}

	tx := types.NewTx(&types.LegacyTx{
		Nonce:    nonce,
		GasPrice: gasPrice,
		Gas:      g.cfg.GasLimit,
		To:       &to,
		Value:    big.NewInt(0),
		Data:     data,
	})
	signed, err := types.SignTx(tx, g.signer, g.priv)
	if err != nil {
		return domain.PendingTransaction{}, fmt.Errorf("eth: %s: signing: %w: %v", method, domain.ErrSubmissionRejected, err)
	}
	if err := g.client.eth.SendTransaction(ctx, signed); err != nil {
		return domain.PendingTransaction{}, fmt.Errorf("eth: %s: %w: %v", method, domain.ErrSubmissionRejected, err)
	}

	g.logger.Info("transaction submitted",
		slog.String("kind", string(kind)),
		slog.String("to", to.Hex()),
		slog.String("hash", signed.Hash().Hex()),
		slog.Uint64("nonce", nonce),
	)
	return domain.PendingTransaction{Kind: kind, Hash: signed.Hash(), Status: domain.TxStatusSubmitted}, nil
}

func (g *Gateway) Approve(ctx context.Context, token, spender common.Address, amount *big.Int) (domain.PendingTransaction, error) {
	return g.send(ctx, domain.TxKindApprove, token, erc20ABI, "approve", spender, amount)
}

func (g *Gateway) Mint(ctx context.Context, asset, to common.Address, amount *big.Int) (domain.PendingTransaction, error) {
	return g.send(ctx, domain.TxKindMint, asset, erc20ABI, "mint", to, amount)
}

func (g *Gateway) Wrap(ctx context.Context, syToken common.Address, amount *big.Int) (domain.PendingTransaction, error) {
	return g.send(ctx, domain.TxKindWrap, syToken, syTokenABI, "wrap", amount)
}

func (g *Gateway) Unwrap(ctx context.Context, syToken common.Address, amount *big.Int) (domain.PendingTransaction, error) {
	return g.send(ctx, domain.TxKindUnwrap, syToken, syTokenABI, "unwrap", amount)
}

func (g *Gateway) ClaimYield(ctx context.Context, syToken common.Address) (domain.PendingTransaction, error) {
	return g.send(ctx, domain.TxKindClaimYield, syToken, syTokenABI, "claimYield")
}

func (g *Gateway) ClaimYieldViaFactory(ctx context.Context, factory, syToken common.Address) (domain.PendingTransaction, error) {
	return g.send(ctx, domain.TxKindClaimYield, factory, factoryABI, "claimYield", syToken)
}

func (g *Gateway) RedeemTokens(ctx context.Context, factory, syToken common.Address, amount *big.Int) (domain.PendingTransaction, error) {
	return g.send(ctx, domain.TxKindRedeem, factory, factoryABI, "redeemTokens", syToken, amount)
}

func (g *Gateway) CreateMarket(ctx context.Context, factory, syToken common.Address, maturity time.Duration, ptName, ptSymbol, ytName, ytSymbol string) (domain.PendingTransaction, error) {
	seconds := big.NewInt(int64(maturity / time.Second))
	return g.send(ctx, domain.TxKindCreateMarket, factory, factoryABI, "createMarket",
		syToken, seconds, ptName, ptSymbol, ytName, ytSymbol)
}

func (g *Gateway) SplitTokens(ctx context.Context, factory, syToken common.Address, amount, minPT, minYT *big.Int) (domain.PendingTransaction, error) {
	return g.send(ctx, domain.TxKindSplit, factory, factoryABI, "splitTokens", syToken, amount, minPT, minYT)
}

// ---------------------------------------------------------------------------
// Confirmation
// ---------------------------------------------------------------------------

// WaitConfirmed polls for the transaction receipt under the configured
// budget. A mined failure becomes *domain.RevertError carrying the decoded
// reason when the node exposes one; exhausting the budget becomes
// domain.ErrConfirmationTimeout.
func (g *Gateway) WaitConfirmed(ctx context.Context, tx domain.PendingTransaction) (domain.PendingTransaction, error) {
	var receipt *types.Receipt
	err := g.cfg.Confirm.Do(ctx, func(ctx context.Context) error {
		r, err := g.client.eth.TransactionReceipt(ctx, tx.Hash)
		if err != nil {
			// Not mined yet (ethereum.NotFound) or a transient transport
			// error; either way the receipt may exist on the next poll.
			return err
		}
		receipt = r
		return nil
	})
	if err != nil {
		if errors.Is(err, retry.ErrExhausted) {
			return tx, fmt.Errorf("eth: %s: %w", tx.Hash.Hex(), domain.ErrConfirmationTimeout)
		}
		return tx, fmt.Errorf("eth: waiting for %s: %w", tx.Hash.Hex(), err)
	}

	if receipt.Status == types.ReceiptStatusSuccessful {
		tx.Status = domain.TxStatusConfirmed
		g.logger.Info("transaction confirmed",
			slog.String("kind", string(tx.Kind)),
			slog.String("hash", tx.Hash.Hex()),
			slog.Uint64("block", receipt.BlockNumber.Uint64()),
		)
		return tx, nil
	}

	tx.Status = domain.TxStatusReverted
	reason := g.revertReason(ctx, tx.Hash, receipt.BlockNumber)
	g.logger.Warn("transaction reverted",
		slog.String("kind", string(tx.Kind)),
		slog.String("hash", tx.Hash.Hex()),
		slog.String("reason", reason),
	)
	return tx, &domain.RevertError{TxHash: tx.Hash, Reason: reason}
}

// revertReason replays the failed transaction as a call at its inclusion
// block; most nodes return the Error(string) payload in the call error.
// Best-effort: an empty string means no reason was recoverable.
func (g *Gateway) revertReason(ctx context.Context, hash common.Hash, block *big.Int) string {
	orig, _, err := g.client.eth.TransactionByHash(ctx, hash)
	if err != nil || orig == nil || orig.To() == nil {
		return ""
	}
	msg := ethereum.CallMsg{
		From:  g.from,
		To:    orig.To(),
		Gas:   orig.Gas(),
		Value: orig.Value(),
		Data:  orig.Data(),
	}
	_, callErr := g.client.eth.CallContract(ctx, msg, block)
	if callErr == nil {
		return ""
	}
	return callErr.Error()
}
