package internal

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/vadiminshakov/balancewatch/internal/cache"
	"github.com/vadiminshakov/balancewatch/internal/domain"
	"github.com/vadiminshakov/balancewatch/internal/source"
	"github.com/vadiminshakov/balancewatch/internal/subscriber"
	"github.com/vadiminshakov/balancewatch/pkg/retrier"
)

const (
	defaultStreamBuffer      = 256
	defaultKeepaliveInterval = 30 * time.Minute
	defaultReconnectWait     = 5 * time.Second
	closeSessionTimeout      = 5 * time.Second
)

// SessionOptions tunes a Session. Zero values fall back to defaults.
type SessionOptions struct {
	StreamBuffer      int
	KeepaliveInterval time.Duration
	ReconnectWait     time.Duration
	Retrier           *retrier.Retrier
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.StreamBuffer <= 0 {
		o.StreamBuffer = defaultStreamBuffer
	}
	if o.KeepaliveInterval <= 0 {
		o.KeepaliveInterval = defaultKeepaliveInterval
	}
	if o.ReconnectWait <= 0 {
		o.ReconnectWait = defaultReconnectWait
	}
	if o.Retrier == nil {
		o.Retrier = retrier.New()
	}
	return o
}

// Session keeps a cache consistent with a remote account: snapshot first, then the update stream,
// with a full resync every time the stream has to be reopened.
type Session struct {
	source source.AccountSource
	cache  *cache.BalanceCache
	sub    *subscriber.StreamSubscriber
	opts   SessionOptions
	logger *zap.Logger

	readyOnce sync.Once
	ready     chan struct{}
}

// NewSession creates a session. The cache must be fresh: the session initializes it.
func NewSession(src source.AccountSource, c *cache.BalanceCache, sub *subscriber.StreamSubscriber, opts SessionOptions, logger *zap.Logger) (*Session, error) {
	if src == nil {
		return nil, errors.New("account source is nil")
	}
	if c == nil {
		return nil, errors.New("balance cache is nil")
	}
	if sub == nil {
		sub = subscriber.New(c, logger)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Session{
		source: src,
		cache:  c,
		sub:    sub,
		opts:   opts.withDefaults(),
		logger: logger.With(zap.String("source", src.Name())),
		ready:  make(chan struct{}),
	}, nil
}

// Cache returns the cache maintained by the session.
func (s *Session) Cache() *cache.BalanceCache {
	return s.cache
}

// Ready is closed once the cache is initialized and the first session token is issued.
func (s *Session) Ready() <-chan struct{} {
	return s.ready
}

// Run blocks until ctx is done. A failed initial snapshot is returned at once; after the first
// successful start every failure leads to a reconnect.
func (s *Session) Run(ctx context.Context) error {
	for attempt := 0; ; attempt++ {
		err := s.runOnce(ctx, attempt > 0)
		if ctx.Err() != nil {
			s.logger.Info("balance session stopped", zap.Uint64("version", s.cache.Version()))
			return ctx.Err()
		}
		if attempt == 0 && !s.cache.Initialized() {
			return err
		}

		s.logger.Warn("balance stream lost, reconnecting",
			zap.Error(err),
			zap.Duration("wait", s.opts.ReconnectWait),
		)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.opts.ReconnectWait):
		}
	}
}

func (s *Session) runOnce(ctx context.Context, resync bool) error {
	if err := s.loadSnapshot(ctx, resync); err != nil {
		return err
	}

	token, err := retrier.DoWithData(s.opts.Retrier, ctx, s.source.StartSession)
	if err != nil {
		return errors.Wrap(err, "failed to start account session")
	}
	defer s.closeSession(token)

	s.readyOnce.Do(func() { close(s.ready) })
	s.logger.Info("balance session started", zap.Int("assets", s.cache.Len()), zap.Bool("resync", resync))

	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		s.keepalive(streamCtx, token)
	}()

	events := make(chan domain.AccountEvent, s.opts.StreamBuffer)
	streamErr := make(chan error, 1)
	wg.Add(1)
	go func() {
		defer wg.Done()
		defer close(events)
		streamErr <- s.source.Stream(streamCtx, token, events)
	}()

	subErr := s.sub.Run(streamCtx, events)
	cancel()
	wg.Wait()

	if subErr != nil && ctx.Err() == nil {
		return errors.Wrap(subErr, "stream subscriber failed")
	}
	if err := <-streamErr; err != nil {
		return err
	}
	if ctx.Err() == nil {
		return source.ErrStreamClosed
	}
	return nil
}

func (s *Session) loadSnapshot(ctx context.Context, resync bool) error {
	records, err := retrier.DoWithData(s.opts.Retrier, ctx, s.source.Snapshot)
	if err != nil {
		return errors.Wrap(err, "failed to fetch balance snapshot")
	}

	var res cache.ApplyResult
	if resync {
		res = s.cache.Resync(records)
	} else {
		res, err = s.cache.Initialize(records)
		if err != nil {
			return err
		}
	}

	for _, perr := range res.Rejected {
		s.logger.Warn("snapshot record rejected", zap.Error(perr))
	}
	s.sub.Publish(domain.NewAppliedBatch(time.Now(), domain.BatchSnapshot, res.Version, res.Balances))
	return nil
}

func (s *Session) keepalive(ctx context.Context, token string) {
	ticker := time.NewTicker(s.opts.KeepaliveInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.source.KeepaliveSession(ctx, token); err != nil {
				s.logger.Error("failed to keep account session alive", zap.Error(err))
				continue
			}
			s.logger.Debug("account session kept alive")
		}
	}
}

func (s *Session) closeSession(token string) {
	ctx, cancel := context.WithTimeout(context.Background(), closeSessionTimeout)
	defer cancel()

	if err := s.source.CloseSession(ctx, token); err != nil {
		s.logger.Warn("failed to close account session", zap.Error(err))
	}
}
