// Command balancewatch keeps a local copy of an exchange account's balances: it loads a full
// snapshot, then applies the account update stream, and serves the result over HTTP.
//
// Usage:
//
//	balancewatch --config config.yaml
//	balancewatch --setup (interactive wizard, writes config.gen.yaml)
//
// Required environment variables:
//
//	For Binance: BINANCE_API_KEY, BINANCE_API_SECRET
//	For Bybit: BYBIT_API_KEY, BYBIT_API_SECRET
//	For Hyperliquid: HYPERLIQUID_PRIVATE_KEY
package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/vadiminshakov/balancewatch/config"
	"github.com/vadiminshakov/balancewatch/internal"
	"github.com/vadiminshakov/balancewatch/internal/cache"
	"github.com/vadiminshakov/balancewatch/internal/events"
	"github.com/vadiminshakov/balancewatch/internal/setup"
	"github.com/vadiminshakov/balancewatch/internal/storage/balancejournal"
	"github.com/vadiminshakov/balancewatch/internal/subscriber"
	"github.com/vadiminshakov/balancewatch/internal/web"
	"github.com/vadiminshakov/balancewatch/pkg/retrier"
)

func main() {
	flags := config.ParseFlags()
	if flags.Setup {
		path, err := setup.RunTUI()
		if err != nil {
			log.Fatal(err)
		}
		flags.ConfigPath = path
	}

	conf, err := config.Get(flags.ConfigPath)
	if err != nil {
		log.Fatal(err)
	}

	logger, err := newLogger(conf.Log)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, conf, logger); err != nil && !errors.Is(err, context.Canceled) {
		logger.Fatal("balancewatch stopped", zap.Error(err))
	}
	logger.Info("shutdown complete")
}

func run(ctx context.Context, conf config.Config, logger *zap.Logger) error {
	client, err := internal.NewClient(conf)
	if err != nil {
		return err
	}
	src, err := internal.NewAccountSource(client, conf, logger)
	if err != nil {
		return err
	}

	balances := cache.New(logger.Named("cache"))
	broadcaster := events.NewBalanceBroadcaster(conf.StreamBuffer)
	sinks := []subscriber.BatchSink{broadcaster}

	var journal *balancejournal.WALStore
	if conf.JournalDir != "" {
		journal, err = balancejournal.NewWALStore(conf.JournalDir)
		if err != nil {
			return err
		}
		defer journal.Close()
		sinks = append(sinks, internal.JournalSink(journal, logger.Named("journal")))
		logger.Info("balance journal enabled", zap.String("dir", conf.JournalDir), zap.Uint64("index", journal.CurrentIndex()))
	}

	sub := subscriber.New(balances, logger.Named("subscriber"), sinks...)
	r := retrier.New(
		retrier.WithMaxRetries(conf.Retry.MaxRetries),
		retrier.WithInitialInterval(conf.Retry.InitialInterval),
		retrier.WithMaxInterval(conf.Retry.MaxInterval),
		retrier.WithRetryIf(internal.Retryable),
		retrier.WithOnRetry(func(attempt int, err error, wait time.Duration) {
			logger.Warn("exchange call failed, retrying", zap.Int("attempt", attempt), zap.Duration("wait", wait), zap.Error(err))
		}),
	)

	session, err := internal.NewSession(src, balances, sub, internal.SessionOptions{
		StreamBuffer:      conf.StreamBuffer,
		KeepaliveInterval: conf.KeepaliveInterval,
		ReconnectWait:     conf.ReconnectWait,
		Retrier:           r,
	}, logger.Named("session"))
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	if conf.WebAddr != "" {
		srv := web.NewServer(conf.WebAddr, balances, broadcaster, nil, logger.Named("web"))
		if journal != nil {
			srv.Journal = journal
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.Start(ctx); err != nil {
				logger.Error("web server failed", zap.Error(err))
			}
		}()
	}

	logger.Info("starting balance session",
		zap.String("platform", conf.Platform),
		zap.String("market", conf.MarketType.String()),
		zap.Bool("testnet", conf.Testnet),
	)
	err = session.Run(ctx)
	cancel()
	wg.Wait()
	return err
}

func newLogger(conf config.LogConfig) (*zap.Logger, error) {
	zapConf := zap.NewProductionConfig()
	if conf.Development {
		zapConf = zap.NewDevelopmentConfig()
	}
	level, err := zapcore.ParseLevel(conf.Level)
	if err != nil {
		return nil, err
	}
	zapConf.Level = zap.NewAtomicLevelAt(level)
	return zapConf.Build()
}
