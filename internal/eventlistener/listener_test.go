package eventlistener

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/fairlaunch/internal/blockchain"
)

// подписка solana-go должна подходить под Subscription через адаптер
var _ Subscription = logSub{}

func TestWebSocketDialer_ConnectFailure(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	sub, closeConn, err := WebSocketDialer("ws://127.0.0.1:1")(ctx, solana.PublicKey{})
	require.Error(t, err)
	assert.Nil(t, sub)
	assert.Nil(t, closeConn)
	assert.Contains(t, err.Error(), "failed to connect websocket")
}

// fakeSubscription отдает заранее заданные результаты, затем ошибку или блокируется.
type fakeSubscription struct {
	results      []*ws.LogResult
	failAfter    bool
	unsubscribed atomic.Bool
}

func (s *fakeSubscription) Recv(ctx context.Context) (*ws.LogResult, error) {
	if len(s.results) > 0 {
		r := s.results[0]
		s.results = s.results[1:]
		return r, nil
	}
	if s.failAfter {
		return nil, errors.New("connection reset")
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func (s *fakeSubscription) Unsubscribe() {
	s.unsubscribed.Store(true)
}

func logResult(sig byte, logs []string, txErr interface{}) *ws.LogResult {
	r := &ws.LogResult{}
	r.Context.Slot = uint64(sig)
	r.Value.Signature = solana.Signature{sig}
	r.Value.Logs = logs
	r.Value.Err = txErr
	return r
}

func TestEventListener_ReconnectsAndSkipsFailedTx(t *testing.T) {
	first := &fakeSubscription{
		results: []*ws.LogResult{
			logResult(1, buyLogs, nil),
			logResult(2, buyLogs, map[string]interface{}{"InstructionError": []interface{}{0, "Custom"}}),
		},
		failAfter: true,
	}
	second := &fakeSubscription{results: []*ws.LogResult{logResult(3, buyLogs, nil)}}

	var dials atomic.Int32
	dialer := func(_ context.Context, _ solana.PublicKey) (Subscription, func(), error) {
		switch dials.Add(1) {
		case 1:
			return first, func() {}, nil
		case 2:
			return nil, nil, errors.New("dial refused")
		default:
			return second, func() {}, nil
		}
	}

	l := NewEventListenerWithDialer(dialer, solana.NewWallet().PublicKey(), zap.NewNop())
	l.minBackoff = time.Millisecond
	l.maxBackoff = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		mu       sync.Mutex
		received []blockchain.LogNotification
	)
	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx, func(_ context.Context, n blockchain.LogNotification) {
			mu.Lock()
			received = append(received, n)
			count := len(received)
			mu.Unlock()
			if count == 2 {
				cancel()
			}
		})
	}()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("listener did not stop")
	}

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 2)
	assert.Equal(t, solana.Signature{1}, received[0].Signature)
	assert.Equal(t, uint64(1), received[0].Slot)
	assert.Equal(t, solana.Signature{3}, received[1].Signature)
	assert.True(t, first.unsubscribed.Load())
	assert.GreaterOrEqual(t, dials.Load(), int32(3))
}
