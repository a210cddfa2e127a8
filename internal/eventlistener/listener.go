// internal/eventlistener/listener.go
package eventlistener

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/gagliardetto/solana-go"
	"github.com/gagliardetto/solana-go/rpc"
	"github.com/gagliardetto/solana-go/rpc/ws"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/fairlaunch/internal/blockchain"
)

const (
	initialBackoff = 500 * time.Millisecond
	maxBackoff     = 30 * time.Second
)

// Handler получает каждое уведомление подписки без ошибки транзакции.
type Handler func(ctx context.Context, n blockchain.LogNotification)

// Subscription - поток уведомлений logsSubscribe.
type Subscription interface {
	Recv(ctx context.Context) (*ws.LogResult, error)
	Unsubscribe()
}

// Dialer открывает подписку на логи программы; close освобождает соединение.
type Dialer func(ctx context.Context, programID solana.PublicKey) (sub Subscription, close func(), err error)

// EventListener подписывается на логи программы кривой и переподключается при обрывах.
type EventListener struct {
	programID  solana.PublicKey
	dial       Dialer
	logger     *zap.Logger
	minBackoff time.Duration
	maxBackoff time.Duration
}

// NewEventListener создает слушатель поверх WebSocket RPC.
func NewEventListener(wsURL string, programID solana.PublicKey, logger *zap.Logger) *EventListener {
	return NewEventListenerWithDialer(WebSocketDialer(wsURL), programID, logger)
}

// NewEventListenerWithDialer создает слушатель с заданным способом подключения.
func NewEventListenerWithDialer(dial Dialer, programID solana.PublicKey, logger *zap.Logger) *EventListener {
	return &EventListener{
		programID:  programID,
		dial:       dial,
		logger:     logger.Named("eventlistener"),
		minBackoff: initialBackoff,
		maxBackoff: maxBackoff,
	}
}

// WebSocketDialer подключается к ws-эндпоинту Solana и подписывается на упоминания программы.
func WebSocketDialer(wsURL string) Dialer {
	return func(ctx context.Context, programID solana.PublicKey) (Subscription, func(), error) {
		client, err := ws.Connect(ctx, wsURL)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect websocket: %w", err)
		}
		sub, err := client.LogsSubscribeMentions(programID, rpc.CommitmentConfirmed)
		if err != nil {
			client.Close()
			return nil, nil, fmt.Errorf("failed to subscribe to logs: %w", err)
		}
		return logSub{sub}, client.Close, nil
	}
}

// logSub дает Recv из ws.LogSubscription отмену по контексту.
type logSub struct {
	*ws.LogSubscription
}

func (s logSub) Recv(ctx context.Context) (*ws.LogResult, error) {
	type received struct {
		result *ws.LogResult
		err    error
	}
	ch := make(chan received, 1)
	go func() {
		result, err := s.LogSubscription.Recv()
		ch <- received{result: result, err: err}
	}()

	select {
	case r := <-ch:
		return r.result, r.err
	case <-ctx.Done():
		// горутина завершится, когда закроется соединение
		return nil, ctx.Err()
	}
}

// Run слушает логи до отмены контекста, переподключаясь с экспоненциальной задержкой.
func (l *EventListener) Run(ctx context.Context, handler Handler) error {
	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = l.minBackoff
	policy.MaxInterval = l.maxBackoff

	for {
		err := l.subscribeAndListen(ctx, handler, policy.Reset)
		if ctx.Err() != nil {
			l.logger.Info("Log subscription stopped")
			return nil
		}

		wait := policy.NextBackOff()
		l.logger.Warn("Log subscription lost, reconnecting",
			zap.Error(err),
			zap.Duration("backoff", wait))

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(wait):
		}
	}
}

func (l *EventListener) subscribeAndListen(ctx context.Context, handler Handler, onConnected func()) error {
	sub, closeConn, err := l.dial(ctx, l.programID)
	if err != nil {
		return err
	}
	defer closeConn()
	defer sub.Unsubscribe()

	onConnected()
	l.logger.Info("Subscribed to program logs", zap.String("program", l.programID.String()))

	for {
		result, err := sub.Recv(ctx)
		if err != nil {
			return fmt.Errorf("failed to receive log notification: %w", err)
		}
		if result == nil {
			continue
		}

		n := blockchain.LogNotification{
			Signature: result.Value.Signature,
			Slot:      result.Context.Slot,
			Logs:      result.Value.Logs,
			Err:       result.Value.Err,
		}
		if n.Err != nil {
			l.logger.Debug("Skipping failed transaction",
				zap.String("signature", n.Signature.String()),
				zap.Any("err", n.Err))
			continue
		}

		handler(ctx, n)
	}
}
