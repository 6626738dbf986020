package source

import (
	"context"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/balancewatch/internal/domain"
)

type wsUserDataServeFunc func(listenKey string, handler binance.WsUserDataHandler, errHandler binance.ErrHandler) (chan struct{}, chan struct{}, error)

// BinanceSource spot or cross margin account of a Binance user.
type BinanceSource struct {
	client     *binance.Client
	marketType domain.MarketType
	logger     *zap.Logger
	wsServe    wsUserDataServeFunc
}

// NewBinanceSource creates a source for the given account segment.
func NewBinanceSource(client *binance.Client, marketType domain.MarketType, logger *zap.Logger) (*BinanceSource, error) {
	if client == nil {
		return nil, errors.New("binance client is nil")
	}
	if !marketType.IsValid() {
		return nil, errors.Errorf("unsupported market type %q", marketType)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BinanceSource{
		client:     client,
		marketType: marketType,
		logger:     logger.With(zap.String("source", "binance"), zap.String("market", marketType.String())),
		wsServe:    binance.WsUserDataServe,
	}, nil
}

func (s *BinanceSource) Name() string { return "binance" }

// Snapshot fetches every balance of the account.
func (s *BinanceSource) Snapshot(ctx context.Context) ([]domain.BalanceRecord, error) {
	if s.marketType == domain.MarketTypeMargin {
		account, err := s.client.NewGetMarginAccountService().Do(ctx)
		if err != nil {
			return nil, errors.Wrap(err, "failed to get binance margin account")
		}
		return marginBalances(account), nil
	}

	account, err := s.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, errors.Wrap(err, "failed to get binance account")
	}
	return spotBalances(account), nil
}

// StartSession creates a listen key for the user data stream.
func (s *BinanceSource) StartSession(ctx context.Context) (string, error) {
	var (
		listenKey string
		err       error
	)
	if s.marketType == domain.MarketTypeMargin {
		listenKey, err = s.client.NewStartMarginUserStreamService().Do(ctx)
	} else {
		listenKey, err = s.client.NewStartUserStreamService().Do(ctx)
	}
	if err != nil {
		return "", errors.Wrap(err, "failed to start binance user data stream")
	}
	return listenKey, nil
}

// KeepaliveSession extends the listen key validity. Keys expire 60 minutes after the last keepalive.
func (s *BinanceSource) KeepaliveSession(ctx context.Context, token string) error {
	var err error
	if s.marketType == domain.MarketTypeMargin {
		err = s.client.NewKeepaliveMarginUserStreamService().ListenKey(token).Do(ctx)
	} else {
		err = s.client.NewKeepaliveUserStreamService().ListenKey(token).Do(ctx)
	}
	return errors.Wrap(err, "failed to keep binance listen key alive")
}

// CloseSession invalidates the listen key.
func (s *BinanceSource) CloseSession(ctx context.Context, token string) error {
	var err error
	if s.marketType == domain.MarketTypeMargin {
		err = s.client.NewCloseMarginUserStreamService().ListenKey(token).Do(ctx)
	} else {
		err = s.client.NewCloseUserStreamService().ListenKey(token).Do(ctx)
	}
	return errors.Wrap(err, "failed to close binance user data stream")
}

// Stream serves the user data websocket for the listen key.
func (s *BinanceSource) Stream(ctx context.Context, token string, out chan<- domain.AccountEvent) error {
	errC := make(chan error, 1)

	handler := func(event *binance.WsUserDataEvent) {
		if event == nil {
			return
		}
		send(ctx, out, convertUserDataEvent(event))
	}
	errHandler := func(err error) {
		if err == nil {
			return
		}
		s.logger.Warn("user data stream error", zap.Error(err))
		select {
		case errC <- err:
		default:
		}
	}

	doneC, stopC, err := s.wsServe(token, handler, errHandler)
	if err != nil {
		return errors.Wrap(err, "failed to serve binance user data stream")
	}

	select {
	case <-ctx.Done():
		close(stopC)
		<-doneC
		return nil
	case <-doneC:
		if ctx.Err() != nil {
			return nil
		}
		select {
		case err := <-errC:
			return errors.Wrap(err, "binance user data stream terminated")
		default:
			return ErrStreamClosed
		}
	}
}

func convertUserDataEvent(event *binance.WsUserDataEvent) domain.AccountEvent {
	out := domain.AccountEvent{Time: time.UnixMilli(event.Time)}

	switch event.Event {
	case binance.UserDataEventTypeOutboundAccountPosition:
		out.Type = domain.EventAccountUpdate
		out.Balances = make([]domain.BalanceRecord, 0, len(event.AccountUpdate.WsAccountUpdates))
		for _, b := range event.AccountUpdate.WsAccountUpdates {
			out.Balances = append(out.Balances, domain.BalanceRecord{Asset: b.Asset, Free: b.Free, Locked: b.Locked})
		}
	case binance.UserDataEventTypeBalanceUpdate:
		out.Type = domain.EventBalanceDelta
	case binance.UserDataEventTypeExecutionReport:
		out.Type = domain.EventOrderUpdate
	default:
		out.Type = domain.EventUnknown
	}

	return out
}

func spotBalances(account *binance.Account) []domain.BalanceRecord {
	if account == nil {
		return nil
	}
	records := make([]domain.BalanceRecord, 0, len(account.Balances))
	for _, b := range account.Balances {
		records = append(records, domain.BalanceRecord{Asset: b.Asset, Free: b.Free, Locked: b.Locked})
	}
	return records
}

func marginBalances(account *binance.MarginAccount) []domain.BalanceRecord {
	if account == nil {
		return nil
	}
	records := make([]domain.BalanceRecord, 0, len(account.UserAssets))
	for _, a := range account.UserAssets {
		records = append(records, domain.BalanceRecord{Asset: a.Asset, Free: a.Free, Locked: a.Locked})
	}
	return records
}
