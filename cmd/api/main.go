package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/itayakad/juno-master/internal/api"
	"github.com/itayakad/juno-master/internal/auth"
	"github.com/itayakad/juno-master/internal/config"
	"github.com/itayakad/juno-master/internal/consumer"
	"github.com/itayakad/juno-master/internal/domain"
	"github.com/itayakad/juno-master/internal/outbox"
	"github.com/itayakad/juno-master/internal/persistence/memory"
	"github.com/itayakad/juno-master/internal/persistence/postgres"
	"github.com/itayakad/juno-master/internal/photos"
	httptransport "github.com/itayakad/juno-master/internal/transport/http"
	"github.com/itayakad/juno-master/internal/views"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	loc, err := cfg.Location()
	if err != nil {
		log.Fatalf("invalid timezone: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var (
		repo       domain.LogRepository
		profiles   domain.ProfileStore
		dispatcher *outbox.Dispatcher
	)
	if cfg.PostgresURL != "" {
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			log.Fatalf("failed to connect to postgres: %v", err)
		}
		defer pool.Close()

		repo = postgres.NewRepository(pool)
		profiles = postgres.NewProfileStore(pool)

		producer := outbox.NewKafkaProducer(cfg.KafkaBrokers)
		defer producer.Close()

		registry := outbox.NewSchemaRegistryClient(cfg.SchemaRegistryURL, nil)
		dispatcher = outbox.NewDispatcher(pool, producer, registry, cfg.OutboxPollInterval, cfg.OutboxBatchSize, cfg.DLQBaseDelay)
		go dispatcher.Start(ctx)
	} else {
		// Without a broker the profile projection follows the repository directly.
		var projection *consumer.ProjectionHandler
		store := memory.NewRepository(memory.WithEventSink(func(ctx context.Context, evt memory.Event) {
			if err := projection.Apply(ctx, evt.Type, evt.Payload); err != nil {
				log.Printf("profile projection failed (event=%s user=%s): %v", evt.Type, evt.UserID, err)
			}
		}))
		projection = consumer.NewProjectionHandler(store)
		repo, profiles = store, store
		log.Printf("POSTGRES_URL not set; keeping logs in memory")
	}

	var photoStore domain.PhotoStore = domain.NoopPhotoStore{}
	if cfg.PhotoBucket != "" {
		s3Store, err := photos.NewS3Store(ctx, photos.Config{
			Bucket:       cfg.PhotoBucket,
			Region:       cfg.PhotoRegion,
			Endpoint:     cfg.PhotoEndpoint,
			AccessKey:    cfg.PhotoAccessKey,
			SecretKey:    cfg.PhotoSecretKey,
			UsePathStyle: cfg.PhotoUsePathStyle,
		})
		if err != nil {
			log.Fatalf("failed to configure photo store: %v", err)
		}
		photoStore = s3Store
	}

	var viewStore views.Store = views.NewMemoryStore()
	if cfg.RedisAddress != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddress,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			log.Fatalf("failed to connect to redis: %v", err)
		}
		viewStore = views.NewRedisStore(client, cfg.ViewStateTTL)
	}

	service := domain.NewService(repo, profiles, photoStore,
		domain.WithLocation(loc),
		domain.WithLocale(cfg.Locale),
	)

	handler := api.NewHandler(service, viewStore)
	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.Handle("/metrics", promhttp.Handler())

	authMiddleware := auth.NewMiddleware(auth.Config{Secret: cfg.JWTSecret, Issuer: cfg.JWTIssuer}, auth.PublicPaths)

	server := httptransport.NewServer(httptransport.ServerConfig{
		Address:      cfg.HTTPAddress,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  60 * time.Second,
	}, httptransport.RequestLogger(nil, httptransport.CORS(cfg.CORSAllowedOrigin, authMiddleware.Wrap(mux))))

	shutdownCh := make(chan os.Signal, 1)
	signal.Notify(shutdownCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		log.Printf("juno api listening on %s", cfg.HTTPAddress)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-shutdownCh
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Printf("graceful shutdown failed: %v", err)
	}

	if dispatcher != nil {
		dispatcher.Wait()
	}
}
