package launch

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/fairlaunch/internal/blockchain/mocks"
	"github.com/rovshanmuradov/fairlaunch/internal/blockchain/solana/programs"
	"github.com/rovshanmuradov/fairlaunch/internal/bundle"
	"github.com/rovshanmuradov/fairlaunch/internal/dex/curve"
	"github.com/rovshanmuradov/fairlaunch/internal/events"
	"github.com/rovshanmuradov/fairlaunch/internal/storage"
	"github.com/rovshanmuradov/fairlaunch/internal/storage/memory"
	"github.com/rovshanmuradov/fairlaunch/internal/storage/models"
	"github.com/rovshanmuradov/fairlaunch/internal/wallet"
)

type recordingEmitter struct {
	events []events.Event
}

func (e *recordingEmitter) Emit(ev events.Event) {
	e.events = append(e.events, ev)
}

type stubPinner struct {
	uri   string
	err   error
	calls int
}

func (p *stubPinner) Pin(context.Context, OffChainMetadata) (string, error) {
	p.calls++
	return p.uri, p.err
}

type stubBundler struct {
	sig      solana.Signature
	err      error
	txs      []*solana.Transaction
	calls    int
	onSubmit func()
}

func (b *stubBundler) Submit(_ context.Context, build bundle.TxFactory) (solana.Signature, error) {
	b.calls++
	txs, err := build(solana.Hash{5})
	if err != nil {
		return solana.Signature{}, err
	}
	b.txs = txs
	if b.onSubmit != nil {
		b.onSubmit()
	}
	return b.sig, b.err
}

type launchFixture struct {
	service *Service
	store   *memory.Store
	emitter *recordingEmitter
	pinner  *stubPinner
	bundler *stubBundler
	admin   *wallet.Wallet
	mintKey solana.PrivateKey
}

func newLaunchFixture(t *testing.T) *launchFixture {
	t.Helper()
	f := &launchFixture{
		store:   memory.NewStore(),
		emitter: &recordingEmitter{},
		pinner:  &stubPinner{uri: "https://gw/ipfs/QmHash"},
		bundler: &stubBundler{sig: solana.Signature{7}},
		admin:   wallet.FromPrivateKey(solana.NewWallet().PrivateKey),
		mintKey: solana.NewWallet().PrivateKey,
	}
	f.service = NewService(mocks.NewHappyClient(), f.admin, curve.NewProgram(solana.PublicKey{}),
		f.pinner, f.bundler, f.store, f.emitter, Options{}, zap.NewNop())
	f.service.newMint = func() (solana.PrivateKey, error) { return f.mintKey, nil }
	return f
}

func validRequest() Request {
	return Request{
		Creator: solana.NewWallet().PublicKey().String(),
		Name:    "Doge Two",
		Symbol:  "DOGE2",
		Image:   "https://img.example/doge.png",
	}
}

func programIDs(t *testing.T, tx *solana.Transaction) []solana.PublicKey {
	t.Helper()
	var ids []solana.PublicKey
	for _, ix := range tx.Message.Instructions {
		id, err := tx.Message.Program(ix.ProgramIDIndex)
		require.NoError(t, err)
		ids = append(ids, id)
	}
	return ids
}

func TestLaunch_Success(t *testing.T) {
	f := newLaunchFixture(t)
	ctx := context.Background()
	req := validRequest()

	token, err := f.service.Launch(ctx, req)
	require.NoError(t, err)

	mint := f.mintKey.PublicKey().String()
	assert.Equal(t, mint, token.Mint)
	assert.Equal(t, uint64(1_000_000_000_000_000), token.BaseReserve)
	assert.Equal(t, uint64(30_000_000_000), token.QuoteReserve)
	assert.Equal(t, models.DefaultThreshold, token.Threshold)
	assert.Equal(t, "https://gw/ipfs/QmHash", token.URI)

	stored, err := f.store.FindTokenByMint(ctx, mint)
	require.NoError(t, err)
	assert.Equal(t, req.Creator, stored.Creator)

	ledger, err := f.store.FindLedgerByMint(ctx, mint)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.Equal(t, models.TradeKindInitialLiquidity, ledger[0].Kind)
	assert.Equal(t, solana.Signature{7}.String(), ledger[0].Signature)
	assert.InDelta(t, 0.00003, ledger[0].Price, 1e-12)

	require.Len(t, f.emitter.events, 1)
	created, ok := f.emitter.events[0].(events.TokenCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, mint, created.Mint)
	assert.Equal(t, "Doge Two", created.Name)
}

func TestLaunch_TransactionLayout(t *testing.T) {
	f := newLaunchFixture(t)
	req := validRequest()
	req.Presale = 0.5

	_, err := f.service.Launch(context.Background(), req)
	require.NoError(t, err)
	require.Len(t, f.bundler.txs, 2)

	mintTx, seedTx := f.bundler.txs[0], f.bundler.txs[1]
	assert.Equal(t, []solana.PublicKey{
		solana.SystemProgramID,
		solana.TokenProgramID,
		programs.MetadataProgramID,
		solana.SPLAssociatedTokenAccountProgramID,
		solana.TokenProgramID,
	}, programIDs(t, mintTx))
	// админ и новый mint
	assert.Len(t, mintTx.Signatures, 2)
	assert.Equal(t, solana.Hash{5}, mintTx.Message.RecentBlockhash)

	assert.Equal(t, []solana.PublicKey{
		curve.DefaultProgramID,
		solana.TokenProgramID,
		solana.TokenProgramID,
		curve.DefaultProgramID,
	}, programIDs(t, seedTx))
	assert.Len(t, seedTx.Signatures, 1)
}

func TestLaunch_NoPresaleSkipsBuy(t *testing.T) {
	f := newLaunchFixture(t)

	_, err := f.service.Launch(context.Background(), validRequest())
	require.NoError(t, err)
	assert.Len(t, f.bundler.txs[1].Message.Instructions, 3)
}

func TestLaunch_CustomThreshold(t *testing.T) {
	f := newLaunchFixture(t)
	req := validRequest()
	req.Threshold = 12_000

	token, err := f.service.Launch(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 12_000.0, token.Threshold)
}

func TestLaunch_BundleFailure(t *testing.T) {
	f := newLaunchFixture(t)
	f.bundler.err = bundle.ErrNoRelayAccepted
	ctx := context.Background()

	_, err := f.service.Launch(ctx, validRequest())
	require.ErrorIs(t, err, ErrLaunchFailed)
	assert.ErrorIs(t, err, bundle.ErrNoRelayAccepted)

	_, err = f.store.FindTokenByMint(ctx, f.mintKey.PublicKey().String())
	assert.ErrorIs(t, err, storage.ErrNotFound)

	require.Len(t, f.emitter.events, 1)
	notCreated, ok := f.emitter.events[0].(events.TokenNotCreatedEvent)
	require.True(t, ok)
	assert.Equal(t, f.mintKey.PublicKey().String(), notCreated.Mint)
	assert.Equal(t, "submit bundle", notCreated.Reason)
}

func TestLaunch_PinFailureSkipsBundle(t *testing.T) {
	f := newLaunchFixture(t)
	f.pinner.err = ErrPinFailed

	_, err := f.service.Launch(context.Background(), validRequest())
	assert.ErrorIs(t, err, ErrLaunchFailed)
	assert.Zero(t, f.bundler.calls)
	require.Len(t, f.emitter.events, 1)
	assert.Equal(t, events.TokenNotCreated, f.emitter.events[0].Type())
}

func TestLaunch_InvalidRequest(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"no name", func(r *Request) { r.Name = " " }},
		{"no ticker", func(r *Request) { r.Symbol = "" }},
		{"long ticker", func(r *Request) { r.Symbol = "ABCDEFGHIJK" }},
		{"bad creator", func(r *Request) { r.Creator = "not-a-key" }},
		{"negative presale", func(r *Request) { r.Presale = -1 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newLaunchFixture(t)
			req := validRequest()
			tt.mutate(&req)

			_, err := f.service.Launch(context.Background(), req)
			assert.ErrorIs(t, err, ErrInvalidRequest)
			assert.Zero(t, f.pinner.calls)
			require.Len(t, f.emitter.events, 1)
			assert.Equal(t, events.TokenNotCreated, f.emitter.events[0].Type())
		})
	}
}

func TestLaunch_DuplicateMintNotSaved(t *testing.T) {
	f := newLaunchFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.CreateToken(ctx, &models.Token{Mint: f.mintKey.PublicKey().String()}))

	_, err := f.service.Launch(ctx, validRequest())
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)
	assert.ErrorIs(t, err, ErrLaunchFailed)
}

func TestPresaleLamports(t *testing.T) {
	assert.Zero(t, PresaleLamports(0))
	assert.Zero(t, PresaleLamports(-2))
	assert.Equal(t, uint64(500_000_000), PresaleLamports(0.5))
	assert.Equal(t, uint64(100_000_000), PresaleLamports(0.1))
	assert.Equal(t, uint64(3_000_000_000), PresaleLamports(3))
}

func TestLaunch_ThroughJitoSubmitter(t *testing.T) {
	var body []byte
	relay := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"result":"bundle"}`))
	}))
	defer relay.Close()

	client := mocks.NewHappyClient()
	admin := wallet.FromPrivateKey(solana.NewWallet().PrivateKey)
	store := memory.NewStore()
	emitter := &recordingEmitter{}
	submitter := bundle.NewSubmitter(client, admin, []string{relay.URL}, 0, zap.NewNop())

	svc := NewService(client, admin, curve.NewProgram(solana.PublicKey{}),
		&stubPinner{uri: "https://gw/ipfs/Qm"}, submitter, store, emitter, Options{}, zap.NewNop())

	token, err := svc.Launch(context.Background(), validRequest())
	require.NoError(t, err)
	assert.NotEmpty(t, token.Mint)

	// чаевые, mint, ликвидность
	assert.Len(t, gjson.GetBytes(body, "params.0").Array(), 3)

	ledger, err := store.FindLedgerByMint(context.Background(), token.Mint)
	require.NoError(t, err)
	require.Len(t, ledger, 1)
	assert.NotEqual(t, solana.Signature{}.String(), ledger[0].Signature)
}

// ctxStore отклоняет записи с отмененным контекстом, как это делает pgx.
type ctxStore struct {
	*memory.Store
}

func (s ctxStore) CreateToken(ctx context.Context, t *models.Token) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.Store.CreateToken(ctx, t)
}

func (s ctxStore) AppendLedgerEntry(ctx context.Context, r *models.TradeRecord) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return s.Store.AppendLedgerEntry(ctx, r)
}

func TestLaunch_CancelAfterBundleAcceptedStillSaves(t *testing.T) {
	f := newLaunchFixture(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	f.bundler.onSubmit = cancel
	f.service.store = ctxStore{Store: f.store}

	token, err := f.service.Launch(ctx, validRequest())
	require.NoError(t, err)

	stored, err := f.store.FindTokenByMint(context.Background(), token.Mint)
	require.NoError(t, err)
	assert.Equal(t, token.Mint, stored.Mint)

	ledger, err := f.store.FindLedgerByMint(context.Background(), token.Mint)
	require.NoError(t, err)
	assert.Len(t, ledger, 1)
}
