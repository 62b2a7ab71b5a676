package router

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/0xvey/dexmaker/business/trading/app"
	"github.com/0xvey/dexmaker/internal/apperror"
	"github.com/0xvey/dexmaker/internal/asset"
	"github.com/0xvey/dexmaker/internal/logger"
)

// txBackend is the chain surface needed to send and confirm transactions.
// *ethclient.Client satisfies it.
type txBackend interface {
	bind.ContractBackend
	bind.DeployBackend
}

// Ensure ERC20Approver implements Approver.
var _ app.Approver = (*ERC20Approver)(nil)

// unlimitedFloor is the smallest allowance treated as effectively
// unlimited. Half of MaxUint256 cannot be spent down by any realistic
// trade volume.
var unlimitedFloor = new(big.Int).Rsh(MaxUint256, 1)

// ERC20Approver guarantees router allowances before swaps. Only
// unlimited grants are cached: a finite allowance shrinks as swaps
// spend it, so it is re-read on every call.
type ERC20Approver struct {
	backend     txBackend
	auth        *bind.TransactOpts
	owner       common.Address
	erc20ABI    abi.ABI
	confirmWait time.Duration

	approved sync.Map // token|spender -> struct{}

	logger    logger.LoggerInterface
	tracer    trace.Tracer
	approvals metric.Int64Counter
}

// NewERC20Approver creates an approval guard signing with auth.
func NewERC20Approver(backend txBackend, auth *bind.TransactOpts, confirmWait time.Duration, log logger.LoggerInterface) (*ERC20Approver, error) {
	parsedABI, err := abi.JSON(strings.NewReader(ERC20ABI))
	if err != nil {
		return nil, fmt.Errorf("failed to parse erc20 ABI: %w", err)
	}

	a := &ERC20Approver{
		backend:     backend,
		auth:        auth,
		owner:       auth.From,
		erc20ABI:    parsedABI,
		confirmWait: confirmWait,
		logger:      log,
		tracer:      otel.Tracer(tracerName),
	}

	meter := otel.Meter(meterName)
	a.approvals, err = meter.Int64Counter(
		"router_approvals_total",
		metric.WithDescription("ERC20 approve transactions sent"),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to init metrics: %w", err)
	}

	return a, nil
}

// EnsureAllowance checks the current allowance and, when insufficient,
// grants the spender an unlimited allowance and waits for it to mine.
func (a *ERC20Approver) EnsureAllowance(ctx context.Context, token *asset.Asset, spender common.Address, amount *big.Int) error {
	ctx, span := a.tracer.Start(ctx, "router.ensure_allowance",
		trace.WithAttributes(
			attribute.String("token", token.Symbol()),
			attribute.String("spender", spender.Hex()),
		),
	)
	defer span.End()

	cacheKey := token.Address().Hex() + "|" + spender.Hex()
	if _, ok := a.approved.Load(cacheKey); ok {
		return nil
	}

	contract := bind.NewBoundContract(token.Address(), a.erc20ABI, a.backend, a.backend, a.backend)

	var out []interface{}
	err := contract.Call(&bind.CallOpts{Context: ctx}, &out, "allowance", a.owner, spender)
	if err != nil {
		return apperror.New(apperror.CodeApprovalFailed,
			apperror.WithCause(err),
			apperror.WithContext("allowance read failed for "+token.Symbol()))
	}

	allowance, ok := out[0].(*big.Int)
	if !ok {
		return apperror.New(apperror.CodeApprovalFailed,
			apperror.WithContext("allowance returned unexpected type"))
	}

	if allowance.Cmp(amount) >= 0 {
		if allowance.Cmp(unlimitedFloor) >= 0 {
			a.approved.Store(cacheKey, struct{}{})
		}
		return nil
	}

	a.logger.Info(ctx, "granting router allowance",
		"token", token.Symbol(),
		"spender", spender.Hex())

	opts := *a.auth
	opts.Context = ctx

	tx, err := contract.Transact(&opts, "approve", spender, MaxUint256)
	if err != nil {
		return apperror.New(apperror.CodeApprovalFailed,
			apperror.WithCause(err),
			apperror.WithContext("approve submission failed for "+token.Symbol()))
	}

	a.approvals.Add(ctx, 1, metric.WithAttributes(attribute.String("token", token.Symbol())))

	waitCtx, cancel := context.WithTimeout(ctx, a.confirmWait)
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, a.backend, tx)
	if err != nil {
		return apperror.New(apperror.CodeApprovalFailed,
			apperror.WithCause(err),
			apperror.WithContext("approve not mined for "+token.Symbol()))
	}
	if receipt.Status != 1 {
		return apperror.New(apperror.CodeApprovalFailed,
			apperror.WithContext("approve reverted for "+token.Symbol()))
	}

	a.approved.Store(cacheKey, struct{}{})
	return nil
}
