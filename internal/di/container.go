package di

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/go-chi/chi/v5"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"
	"google.golang.org/api/iterator"

	"github.com/velour-beauty/api/internal/domain"
	"github.com/velour-beauty/api/internal/handlers"
	"github.com/velour-beauty/api/internal/payments"
	"github.com/velour-beauty/api/internal/platform/auth"
	"github.com/velour-beauty/api/internal/platform/config"
	"github.com/velour-beauty/api/internal/platform/events"
	pfirestore "github.com/velour-beauty/api/internal/platform/firestore"
	"github.com/velour-beauty/api/internal/platform/media"
	"github.com/velour-beauty/api/internal/platform/observability"
	"github.com/velour-beauty/api/internal/repositories"
	firestoreRepo "github.com/velour-beauty/api/internal/repositories/firestore"
	"github.com/velour-beauty/api/internal/services"
)

// Services bundles the service-layer contracts handlers depend on.
type Services struct {
	Cart     services.CartService
	Checkout services.CheckoutService
	Orders   services.OrderService
	System   services.SystemService
}

// Container wires configuration, repositories, services, and the HTTP router
// into a single runtime unit with a deterministic shutdown order.
type Container struct {
	Config       config.Config
	Repositories *firestoreRepo.Registry
	Services     Services
	Router       chi.Router

	logger  *zap.Logger
	closers []func(context.Context) error
}

type containerOptions struct {
	version string
	clock   func() time.Time
}

// Option customises container construction.
type Option func(*containerOptions)

// WithVersion stamps the build version onto the health endpoints.
func WithVersion(version string) Option {
	return func(o *containerOptions) { o.version = version }
}

// WithClock overrides the time source used by all services.
func WithClock(clock func() time.Time) Option {
	return func(o *containerOptions) {
		if clock != nil {
			o.clock = clock
		}
	}
}

// NewContainer assembles the production dependency graph: Firestore
// repositories, Pub/Sub publisher, payment gateways, the service layer, and
// the chi router. The caller owns Close.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (*Container, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	options := containerOptions{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	c := &Container{Config: cfg, logger: logger}
	eventLog := observability.EventLogger()

	provider := pfirestore.NewProvider(cfg.Firestore)
	firestoreClient, err := provider.Client(ctx)
	if err != nil {
		return nil, fmt.Errorf("di: firestore client: %w", err)
	}
	c.closers = append(c.closers, provider.Close)

	pubsubClient, err := pubsub.NewClient(ctx, eventsProjectID(cfg))
	if err != nil {
		c.closeQuietly(ctx)
		return nil, fmt.Errorf("di: pubsub client: %w", err)
	}
	orderTopic := pubsubClient.Topic(cfg.Events.OrderTopic)
	cartTopic := pubsubClient.Topic(cfg.Events.CartTopic)
	c.closers = append(c.closers, func(context.Context) error {
		orderTopic.Stop()
		cartTopic.Stop()
		return pubsubClient.Close()
	})

	publisher, err := events.NewPubSubPublisher(orderTopic, cartTopic)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, fmt.Errorf("di: event publisher: %w", err)
	}

	healthRepo, err := repositories.NewDependencyHealthRepository([]repositories.DependencyCheck{
		{
			Name:    "firestore",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				iter := firestoreClient.Collections(ctx)
				if _, err := iter.Next(); err != nil && !errors.Is(err, iterator.Done) {
					return err
				}
				return nil
			},
		},
		{
			Name:    "pubsub",
			Timeout: 1500 * time.Millisecond,
			Check: func(ctx context.Context) error {
				_, err := orderTopic.Exists(ctx)
				return err
			},
		},
	}, repositories.WithDependencyClock(options.clock))
	if err != nil {
		c.closeQuietly(ctx)
		return nil, fmt.Errorf("di: health repository: %w", err)
	}

	registry, err := firestoreRepo.NewRegistry(provider, healthRepo)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, fmt.Errorf("di: repository registry: %w", err)
	}
	c.Repositories = registry

	gateway, err := buildPaymentGateway(cfg, eventLog, options.clock)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, err
	}

	pricer, err := services.NewPricingEngine(cfg.Pricing)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, fmt.Errorf("di: pricing engine: %w", err)
	}

	cartService, err := services.NewCartService(services.CartServiceDeps{
		Repository: registry.Carts(),
		Pricer:     pricer,
		Clock:      options.clock,
		Logger:     eventLog,
	})
	if err != nil {
		c.closeQuietly(ctx)
		return nil, fmt.Errorf("di: cart service: %w", err)
	}

	checkoutService, err := services.NewCheckoutService(services.CheckoutServiceDeps{
		Carts:      registry.Carts(),
		Orders:     registry.Orders(),
		Counters:   registry.Counters(),
		Pricer:     pricer,
		Gateway:    gateway,
		Publisher:  publisher,
		Sanitizer:  bluemonday.StrictPolicy(),
		Clock:      options.clock,
		Logger:     eventLog,
		CODMinimum: cfg.Pricing.CODMinimum,
		CODMaximum: cfg.Pricing.CODMaximum,
	})
	if err != nil {
		c.closeQuietly(ctx)
		return nil, fmt.Errorf("di: checkout service: %w", err)
	}

	orderService, err := services.NewOrderService(services.OrderServiceDeps{
		Orders:  registry.Orders(),
		Gateway: gateway,
		Clock:   options.clock,
		Logger:  eventLog,
	})
	if err != nil {
		c.closeQuietly(ctx)
		return nil, fmt.Errorf("di: order service: %w", err)
	}

	systemService, err := services.NewSystemService(registry.Health())
	if err != nil {
		c.closeQuietly(ctx)
		return nil, fmt.Errorf("di: system service: %w", err)
	}

	c.Services = Services{
		Cart:     cartService,
		Checkout: checkoutService,
		Orders:   orderService,
		System:   systemService,
	}

	authenticator, err := buildAuthenticator(ctx, cfg)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, err
	}

	router, err := buildRouter(cfg, logger, authenticator, c.Services, options)
	if err != nil {
		c.closeQuietly(ctx)
		return nil, err
	}
	c.Router = router

	return c, nil
}

// Close releases clients in reverse construction order.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) closeQuietly(ctx context.Context) {
	if err := c.Close(ctx); err != nil && c.logger != nil {
		c.logger.Warn("di: partial shutdown error", zap.Error(err))
	}
}

func buildPaymentGateway(cfg config.Config, logger payments.Logger, clock func() time.Time) (payments.Gateway, error) {
	simulated := payments.NewSimulatedGateway(payments.SimulatedGatewayConfig{
		Latency: cfg.PSP.SimulatedLatency,
		Logger:  logger,
		Clock:   clock,
	})

	var card payments.Gateway = simulated
	if cfg.PSP.Mode == "stripe" {
		stripe, err := payments.NewStripeGateway(payments.StripeGatewayConfig{
			APIKey: cfg.PSP.StripeAPIKey,
			Logger: logger,
			Clock:  clock,
		})
		if err != nil {
			return nil, fmt.Errorf("di: stripe gateway: %w", err)
		}
		card = stripe
	}

	manager, err := payments.NewManager(map[domain.PaymentMethod]payments.Gateway{
		domain.PaymentCard:   card,
		domain.PaymentPayPal: simulated,
		domain.PaymentCOD:    payments.NewCODGateway(clock, logger),
	})
	if err != nil {
		return nil, fmt.Errorf("di: payment manager: %w", err)
	}
	return manager.Routing(), nil
}

func buildAuthenticator(ctx context.Context, cfg config.Config) (*auth.Authenticator, error) {
	var verifier auth.TokenVerifier
	switch cfg.Auth.Mode {
	case "local":
		local, err := auth.NewLocalVerifier(cfg.Auth.LocalSecret, cfg.Auth.LocalIssuer)
		if err != nil {
			return nil, fmt.Errorf("di: local verifier: %w", err)
		}
		verifier = local
	default:
		firebase, err := auth.NewFirebaseVerifier(ctx, auth.FirebaseSettings{
			ProjectID:       cfg.Firebase.ProjectID,
			CredentialsFile: cfg.Firebase.CredentialsFile,
		})
		if err != nil {
			return nil, fmt.Errorf("di: firebase verifier: %w", err)
		}
		verifier = firebase
	}
	return auth.NewAuthenticator(verifier, auth.WithRoleClaim(cfg.Auth.RoleClaim)), nil
}

func buildRouter(cfg config.Config, logger *zap.Logger, authenticator *auth.Authenticator, svc Services, options containerOptions) (chi.Router, error) {
	projectID := traceProjectID(cfg)

	healthOpts := []handlers.HealthOption{
		handlers.WithHealthSystemService(svc.System),
		handlers.WithHealthClock(options.clock),
	}
	if options.version != "" {
		healthOpts = append(healthOpts, handlers.WithHealthVersion(options.version))
	}

	routerOpts := []handlers.Option{
		handlers.WithMiddlewares(
			observability.InjectLoggerMiddleware(logger.Named("http")),
			observability.TraceMiddleware(projectID),
			observability.RecoveryMiddleware(logger.Named("http")),
			observability.RequestLoggerMiddleware(projectID),
		),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(healthOpts...)),
		handlers.WithCartRoutes(handlers.NewCartHandlers(authenticator, svc.Cart).Routes),
		handlers.WithCheckoutRoutes(handlers.NewCheckoutHandlers(authenticator, svc.Checkout).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(authenticator, svc.Orders).Routes),
	}

	if cfg.Features.EnableMediaUploads && cfg.Media.Bucket != "" && cfg.Media.SignerKeyFile != "" {
		signer, err := media.NewServiceAccountSignerFromFile(cfg.Media.SignerKeyFile)
		if err != nil {
			return nil, fmt.Errorf("di: media signer: %w", err)
		}
		storeOpts := []media.GCSOption{media.WithUploadTTL(cfg.Media.UploadURLTTL)}
		if cfg.Media.PublicBaseURL != "" {
			storeOpts = append(storeOpts, media.WithPublicBaseURL(cfg.Media.PublicBaseURL))
		}
		store, err := media.NewGCSStore(cfg.Media.Bucket, signer, storeOpts...)
		if err != nil {
			return nil, fmt.Errorf("di: media store: %w", err)
		}
		routerOpts = append(routerOpts, handlers.WithMediaRoutes(handlers.NewMediaHandlers(authenticator, store).Routes))
	}

	return handlers.NewRouter(routerOpts...), nil
}

func eventsProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Events.ProjectID); id != "" {
		return id
	}
	return traceProjectID(cfg)
}

func traceProjectID(cfg config.Config) string {
	if id := strings.TrimSpace(cfg.Firebase.ProjectID); id != "" {
		return id
	}
	return strings.TrimSpace(cfg.Firestore.ProjectID)
}
