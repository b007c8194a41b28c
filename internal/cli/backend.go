package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/itayakad/juno-master/internal/config"
	"github.com/itayakad/juno-master/internal/document"
	"github.com/itayakad/juno-master/internal/domain"
	"github.com/itayakad/juno-master/internal/persistence/memory"
	"github.com/itayakad/juno-master/internal/persistence/postgres"
	"github.com/itayakad/juno-master/internal/views"
)

var errUserRequired = errors.New("--user is required")

// sourceOptions selects where logs are read from.
type sourceOptions struct {
	File   string
	UserID string
}

// backend bundles the collaborators the commands use.
type backend struct {
	service *domain.Service
	views   views.Store
	userID  string
	closers []func()
}

func (b *backend) Close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

type openFunc func(ctx context.Context, opts sourceOptions) (*backend, error)

// openBackend reads logs from an export file when one is given, otherwise
// from Postgres. Expansion state lives in Redis when configured.
func openBackend(ctx context.Context, opts sourceOptions) (*backend, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	loc, err := cfg.Location()
	if err != nil {
		return nil, err
	}

	b := &backend{userID: strings.TrimSpace(opts.UserID)}
	var (
		repo     domain.LogRepository
		profiles domain.ProfileStore
		export   *document.Export
	)

	switch {
	case opts.File != "":
		exp, err := readExportFile(opts.File)
		if err != nil {
			return nil, err
		}
		if b.userID == "" {
			b.userID = exp.UserID
		}
		export = &exp
		store := memory.NewRepository()
		repo, profiles = store, store
	case cfg.PostgresURL != "":
		pool, err := pgxpool.New(ctx, cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("connect to postgres: %w", err)
		}
		b.closers = append(b.closers, pool.Close)
		repo, profiles = postgres.NewRepository(pool), postgres.NewProfileStore(pool)
	default:
		return nil, errors.New("POSTGRES_URL is required unless --file is given")
	}

	if b.userID == "" {
		b.Close()
		return nil, errUserRequired
	}

	b.views = views.NewMemoryStore()
	if cfg.RedisAddress != "" {
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress, Password: cfg.RedisPassword, DB: cfg.RedisDB})
		b.closers = append(b.closers, func() { _ = client.Close() })
		b.views = views.NewRedisStore(client, cfg.ViewStateTTL)
	}

	b.service = domain.NewService(repo, profiles, nil,
		domain.WithLocation(loc),
		domain.WithLocale(cfg.Locale),
	)

	if export != nil {
		if _, err := b.service.ImportExercises(ctx, b.userID, export.Exercises); err != nil {
			b.Close()
			return nil, err
		}
		if _, err := b.service.ImportMeals(ctx, b.userID, export.Meals); err != nil {
			b.Close()
			return nil, err
		}
	}
	return b, nil
}

func readExportFile(path string) (document.Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return document.Export{}, fmt.Errorf("open export: %w", err)
	}
	defer f.Close()
	return document.ReadExport(f)
}
