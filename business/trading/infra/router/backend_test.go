package router

import (
	"context"
	"errors"
	"math/big"
	"sync"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/0xvey/dexmaker/internal/asset"
)

var (
	routerTestHYPE = asset.NewAsset(asset.NewTokenAssetID(asset.ChainIDHyperEVM, common.HexToAddress("0x5555")), "HYPE", 18)
	routerTestUSDC = asset.NewAsset(asset.NewTokenAssetID(asset.ChainIDHyperEVM, common.HexToAddress("0x2222")), "USDC", 6)
)

// fakeChain is an in-memory chain backend. Reads answer from scripted
// fields, every submitted transaction mines instantly with the
// configured receipt status.
type fakeChain struct {
	mu sync.Mutex

	allowance      *big.Int // returned by every eth_call
	allowanceReads int

	estimate      uint64
	estimateErr   error
	estimateCalls int

	sent          []*types.Transaction
	receiptStatus uint64
	receiptGas    uint64
}

func newFakeChain() *fakeChain {
	return &fakeChain{
		allowance:     big.NewInt(0),
		estimate:      100000,
		receiptStatus: types.ReceiptStatusSuccessful,
		receiptGas:    180000,
	}
}

func (f *fakeChain) setAllowance(v *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowance = new(big.Int).Set(v)
}

func (f *fakeChain) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeChain) lastSent() *types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeChain) reads() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.allowanceReads
}

func (f *fakeChain) CodeAt(ctx context.Context, contract common.Address, blockNumber *big.Int) ([]byte, error) {
	return []byte{0x01}, nil
}

func (f *fakeChain) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return []byte{0x01}, nil
}

func (f *fakeChain) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.allowanceReads++
	return common.LeftPadBytes(f.allowance.Bytes(), 32), nil
}

func (f *fakeChain) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	return &types.Header{Number: big.NewInt(1), BaseFee: big.NewInt(1_000_000_000)}, nil
}

func (f *fakeChain) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return uint64(len(f.sent)), nil
}

func (f *fakeChain) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (f *fakeChain) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.estimateCalls++
	if f.estimateErr != nil {
		return 0, f.estimateErr
	}
	return f.estimate, nil
}

func (f *fakeChain) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, tx)
	return nil
}

func (f *fakeChain) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &types.Receipt{Status: f.receiptStatus, GasUsed: f.receiptGas, TxHash: txHash}, nil
}

func (f *fakeChain) FilterLogs(ctx context.Context, q ethereum.FilterQuery) ([]types.Log, error) {
	return nil, errors.New("fakeChain: log filtering not supported")
}

func (f *fakeChain) SubscribeFilterLogs(ctx context.Context, q ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, errors.New("fakeChain: log subscriptions not supported")
}

// testAuth returns signing options over a throwaway key.
func testAuth(t *testing.T) *bind.TransactOpts {
	t.Helper()
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	auth, err := bind.NewKeyedTransactorWithChainID(key, big.NewInt(int64(asset.ChainIDHyperEVM)))
	if err != nil {
		t.Fatalf("NewKeyedTransactorWithChainID: %v", err)
	}
	return auth
}
