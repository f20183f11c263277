package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"adbridge/internal/bot"
	"adbridge/internal/config"
	"adbridge/internal/insights"
	"adbridge/internal/metrics"
	"adbridge/internal/oauth"
	"adbridge/internal/server"
	"adbridge/internal/telegram"
	"adbridge/internal/workqueue"
	"adbridge/pkg/logging"
)

// Services holds every collaborator the running bot needs.
//
// Construction order follows the dependency graph: shared infrastructure
// (metrics, scheduler, codec, store) first, then the provider clients, then
// the dispatcher and the two event sources that feed it.
type Services struct {
	Settings config.Config

	Metrics   *metrics.Metrics
	Scheduler *workqueue.Scheduler
	Codec     *oauth.Codec
	Store     oauth.TokenStore

	// Exchanger is nil when provider credentials are not configured.
	Exchanger *oauth.Exchanger
	Fetcher   *insights.Fetcher

	Dispatcher *bot.Dispatcher
	Telegram   *telegram.Client
	Processor  *telegram.Processor
	Callback   *oauth.Handler
	Server     *server.Server

	// Poller is nil in webhook mode.
	Poller *telegram.Poller

	closers []func() error
}

// InitializeServices builds Services from validated settings.
func InitializeServices(ctx context.Context, settings config.Config) (*Services, error) {
	s := &Services{Settings: settings}

	if settings.Server.MetricsEnabled {
		s.Metrics = metrics.New()
	}
	s.Scheduler = workqueue.New(workqueue.DefaultConcurrency, s.Metrics)

	codec, err := newCodec(settings.Security)
	if err != nil {
		return nil, err
	}
	s.Codec = codec

	if err := s.initStore(ctx, settings.Store); err != nil {
		return nil, err
	}

	exchanger, err := oauth.NewExchanger(exchangerConfig(settings.Provider))
	switch {
	case errors.Is(err, oauth.ErrNotConfigured):
		logging.Warn("Services", "Provider credentials are not configured; /connect and /report will explain how to set them")
	case err != nil:
		s.Close()
		return nil, fmt.Errorf("failed to create OAuth exchanger: %w", err)
	default:
		s.Exchanger = exchanger
	}

	s.Fetcher = insights.NewFetcher(insights.Config{
		BaseURL: settings.Provider.GraphURL,
		Timeout: settings.Provider.FetchTimeout,
	}, s.Metrics)

	dispatcherCfg := bot.Config{
		Encoder:    s.Codec,
		Store:      s.Store,
		Reports:    s.Fetcher,
		Metrics:    s.Metrics,
		WindowDays: settings.Provider.ReportWindowDays,
	}
	if s.Exchanger != nil {
		dispatcherCfg.Authorizer = s.Exchanger
	}
	s.Dispatcher, err = bot.New(dispatcherCfg)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create dispatcher: %w", err)
	}

	s.Telegram = telegram.NewClient(settings.Telegram.BotToken, telegram.WithAPIURL(settings.Telegram.APIURL))
	s.Processor = telegram.NewProcessor(s.Telegram, s.Dispatcher, s.Scheduler, settings.Telegram.BotUsername)

	s.Callback = s.newCallbackHandler()

	routes := server.Routes{Callback: s.Callback}
	if settings.Telegram.Mode == config.ModeWebhook {
		routes.Webhook = telegram.NewWebhookHandler(s.Processor, settings.Telegram.WebhookSecret)
	} else {
		s.Poller = telegram.NewPoller(s.Telegram, s.Processor, settings.Telegram.PollTimeout)
	}
	if s.Metrics != nil {
		routes.Metrics = s.Metrics.Handler()
	}

	limiter := server.NewRateLimiter(
		settings.Server.CallbackRatePerMinute,
		settings.Server.CallbackBurst,
		settings.Server.TrustForwardedFor,
	).WithMetrics(s.Metrics)
	s.Server = server.New(settings.Server, routes, limiter)

	return s, nil
}

func newCodec(sec config.SecurityConfig) (*oauth.Codec, error) {
	secret := []byte(sec.StateSecret)
	if len(secret) == 0 {
		generated, err := oauth.GenerateSecret()
		if err != nil {
			return nil, fmt.Errorf("failed to generate state secret: %w", err)
		}
		logging.Warn("Services", "STATE_SECRET is not set; using a random key, pending /connect links will not survive a restart")
		secret = generated
	}
	codec, err := oauth.NewCodec(secret)
	if err != nil {
		return nil, fmt.Errorf("failed to create state codec: %w", err)
	}
	return codec, nil
}

func (s *Services) initStore(ctx context.Context, cfg config.StoreConfig) error {
	if cfg.RedisURL == "" {
		mem := oauth.NewMemoryTokenStore(cfg.SweepInterval)
		s.Store = mem
		s.closers = append(s.closers, func() error {
			mem.Stop()
			return nil
		})
		logging.Info("Services", "Using in-memory token store; tokens are lost on restart")
		return nil
	}

	redisStore, err := oauth.NewRedisTokenStoreFromURL(ctx, cfg.RedisURL, cfg.KeyPrefix)
	if err != nil {
		return fmt.Errorf("failed to connect token store: %w", err)
	}
	s.Store = redisStore
	s.closers = append(s.closers, redisStore.Close)
	logging.Info("Services", "Using Redis token store with key prefix %q", cfg.KeyPrefix)
	return nil
}

func exchangerConfig(p config.ProviderConfig) oauth.ExchangerConfig {
	return oauth.ExchangerConfig{
		ClientID:     p.ClientID,
		ClientSecret: p.ClientSecret,
		RedirectURI:  p.RedirectURI,
		AuthURL:      p.AuthURL,
		TokenURL:     p.TokenURL,
		Scopes:       p.Scopes,
		Timeout:      p.ExchangeTimeout,
	}
}

func (s *Services) newCallbackHandler() *oauth.Handler {
	opts := []oauth.HandlerOption{
		oauth.WithTaskRunner(s.Scheduler),
		oauth.WithNotifier(bot.NewConnectedNotifier(s.Dispatcher, s.Telegram, s.Scheduler)),
		oauth.WithMetrics(s.Metrics),
		oauth.WithReturnURL(s.Settings.ReturnURL()),
	}
	var exchanger oauth.CodeExchanger
	if s.Exchanger != nil {
		exchanger = s.Exchanger
	}
	return oauth.NewHandler(s.Codec, exchanger, s.Store, opts...)
}

// Handler is the HTTP root, mainly for tests.
func (s *Services) Handler() http.Handler {
	return s.Server.Handler()
}

// Close releases the token store. It does not drain the scheduler; see
// Application.shutdown.
func (s *Services) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}
