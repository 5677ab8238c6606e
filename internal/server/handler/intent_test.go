package handler

import (
	"context"
	"log/slog"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"

	"github.com/Osiyomeoh/CoreYield-sub001/internal/domain"
)

type fakeOrchestrator struct {
	err   error
	calls []string
	kind  domain.ApprovalKind
}

func (f *fakeOrchestrator) Deposit(_ context.Context, _ common.Address, assetKey string, _ *big.Int) error {
	f.calls = append(f.calls, "deposit:"+assetKey)
	return f.err
}

func (f *fakeOrchestrator) Split(_ context.Context, _ common.Address, assetKey string, _ *big.Int) error {
	f.calls = append(f.calls, "split:"+assetKey)
	return f.err
}

func (f *fakeOrchestrator) DepositAndSplit(_ context.Context, _ common.Address, assetKey string, _ *big.Int) error {
	f.calls = append(f.calls, "deposit_split:"+assetKey)
	return f.err
}

func (f *fakeOrchestrator) Approve(_ context.Context, _ common.Address, assetKey string, kind domain.ApprovalKind, _ *big.Int) error {
	f.calls = append(f.calls, "approve:"+assetKey)
	f.kind = kind
	return f.err
}

func (f *fakeOrchestrator) Reset(_ common.Address, assetKey string) {
	f.calls = append(f.calls, "reset:"+assetKey)
}

func (f *fakeOrchestrator) State(common.Address, string) domain.OrchestrationState {
	return domain.OrchestrationState{Step: domain.StepIdle}
}

type fakeTxService struct {
	viaFactory bool
}

func (f *fakeTxService) ClaimYield(_ context.Context, _ common.Address, _ string, viaFactory bool) (domain.PendingTransaction, error) {
	f.viaFactory = viaFactory
	return domain.PendingTransaction{Kind: domain.TxKindClaimYield}, nil
}

func (f *fakeTxService) Unwrap(context.Context, common.Address, string, *big.Int) (domain.PendingTransaction, error) {
	return domain.PendingTransaction{Kind: domain.TxKindUnwrap}, nil
}

func (f *fakeTxService) RedeemPT(context.Context, common.Address, string, *big.Int) (domain.PendingTransaction, error) {
	return domain.PendingTransaction{Kind: domain.TxKindRedeem}, nil
}

func (f *fakeTxService) FaucetMint(context.Context, common.Address, string, *big.Int) (domain.PendingTransaction, error) {
	return domain.PendingTransaction{Kind: domain.TxKindMint}, nil
}

func post(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

const validWallet = `"0x8888888888888888888888888888888888888888"`

func TestDepositIntent(t *testing.T) {
	orc := &fakeOrchestrator{}
	h := NewIntentHandler(orc, &fakeTxService{}, slog.New(slog.DiscardHandler))

	rec := post(t, h.Deposit, `{"wallet":`+validWallet+`,"asset":"stcore","amount":"500"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"deposit:stcore"}, orc.calls)
}

func TestIntentRejectsBadInput(t *testing.T) {
	h := NewIntentHandler(&fakeOrchestrator{}, &fakeTxService{}, slog.New(slog.DiscardHandler))

	for name, body := range map[string]string{
		"bad json":        `{`,
		"bad wallet":      `{"wallet":"nope","asset":"stcore","amount":"500"}`,
		"missing asset":   `{"wallet":` + validWallet + `,"amount":"500"}`,
		"zero amount":     `{"wallet":` + validWallet + `,"asset":"stcore","amount":"0"}`,
		"negative amount": `{"wallet":` + validWallet + `,"asset":"stcore","amount":"-5"}`,
		"float amount":    `{"wallet":` + validWallet + `,"asset":"stcore","amount":"1.5"}`,
	} {
		rec := post(t, h.Deposit, body)
		require.Equal(t, http.StatusBadRequest, rec.Code, name)
	}
}

func TestApprovalRequiredMapsTo409WithDetails(t *testing.T) {
	orc := &fakeOrchestrator{err: &domain.ApprovalRequiredError{
		Kind:    domain.ApprovalAsset,
		Token:   common.HexToAddress("0x1"),
		Spender: common.HexToAddress("0x2"),
	}}
	h := NewIntentHandler(orc, &fakeTxService{}, slog.New(slog.DiscardHandler))

	rec := post(t, h.Deposit, `{"wallet":`+validWallet+`,"asset":"stcore","amount":"500"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "approval required")
	require.Contains(t, rec.Body.String(), "spender")
}

func TestBusySessionMapsTo409(t *testing.T) {
	orc := &fakeOrchestrator{err: domain.ErrOperationInProgress}
	h := NewIntentHandler(orc, &fakeTxService{}, slog.New(slog.DiscardHandler))

	rec := post(t, h.Split, `{"wallet":`+validWallet+`,"asset":"stcore","amount":"500"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestForeignWalletMapsTo403(t *testing.T) {
	orc := &fakeOrchestrator{err: domain.ErrWalletNotOrchestrated}
	h := NewIntentHandler(orc, &fakeTxService{}, slog.New(slog.DiscardHandler))

	rec := post(t, h.Deposit, `{"wallet":`+validWallet+`,"asset":"stcore","amount":"500"}`)
	require.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUnknownAssetMapsTo404(t *testing.T) {
	orc := &fakeOrchestrator{err: domain.ErrUnknownAsset}
	h := NewIntentHandler(orc, &fakeTxService{}, slog.New(slog.DiscardHandler))

	rec := post(t, h.Deposit, `{"wallet":`+validWallet+`,"asset":"bogus","amount":"500"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestApproveValidatesKind(t *testing.T) {
	orc := &fakeOrchestrator{}
	h := NewIntentHandler(orc, &fakeTxService{}, slog.New(slog.DiscardHandler))

	rec := post(t, h.Approve, `{"wallet":`+validWallet+`,"asset":"stcore","amount":"500","kind":"everything"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Empty(t, orc.calls)

	rec = post(t, h.Approve, `{"wallet":`+validWallet+`,"asset":"stcore","amount":"500","kind":"sy"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, domain.ApprovalSY, orc.kind)
}

func TestClaimYieldForwardsFactoryRouting(t *testing.T) {
	txs := &fakeTxService{}
	h := NewIntentHandler(&fakeOrchestrator{}, txs, slog.New(slog.DiscardHandler))

	rec := post(t, h.ClaimYield, `{"wallet":`+validWallet+`,"asset":"stcore","via_factory":true}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, txs.viaFactory)
}

func TestResetDoesNotRequireAmount(t *testing.T) {
	orc := &fakeOrchestrator{}
	h := NewIntentHandler(orc, &fakeTxService{}, slog.New(slog.DiscardHandler))

	rec := post(t, h.Reset, `{"wallet":`+validWallet+`,"asset":"stcore"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"reset:stcore"}, orc.calls)
}
