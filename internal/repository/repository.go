package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"offermarket/internal/config"

	postgres "offermarket/internal/repository/db"

	"github.com/lib/pq"
)

type Repository struct {
	db  *sql.DB
	cfg *config.PostgresConfig
}

func NewRepository(db *sql.DB, cfg *config.PostgresConfig) (*Repository, error) {
	var err error

	repo := &Repository{
		db:  db,
		cfg: cfg,
	}

	if repo.cfg == nil {
		repo.cfg, err = config.NewPostgresConfig()
		if err != nil {
			return nil, fmt.Errorf("repository.NewRepository: could not load postgres config: %w", err)
		}
	}

	if repo.db == nil {
		repo.db, err = postgres.NewPostgresDB(repo.cfg)
		if err != nil {
			return nil, fmt.Errorf("repository.NewRepository: could not open postgres db: %w", err)
		}
	}

	if repo.cfg.AutoMigrateUp == "true" {
		err = repo.MigrateUp()
		if err != nil {
			return nil, err
		}
	}

	return repo, nil
}

func (repo *Repository) MigrateUp() error {
	err := postgres.MigrateUp(repo.db)
	if err != nil {
		return fmt.Errorf("repository.Repository.MigrateUp: %w", err)
	}
	return nil
}

func (repo *Repository) MigrateDown() error {
	err := postgres.MigrateDown(repo.db)
	if err != nil {
		return fmt.Errorf("repository.Repository.MigrateDown: %w", err)
	}
	return nil
}

func (repo *Repository) Close() error {
	var migErr error
	if repo.cfg.AutoMigrateDown == "true" {
		migErr = repo.MigrateDown()
	}

	err := repo.db.Close()
	return errors.Join(migErr, err)
}

// Begin starts a transaction for a single engine operation. All writes of an
// operation go through one transaction so partial updates never become
// visible.
func (repo *Repository) Begin(ctx context.Context) (*sql.Tx, error) {
	tx, err := repo.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("repository.Repository.Begin: failed to start transaction: %w", err)
	}
	return tx, nil
}

//// Service

// dbExecer lets the same query run either on the pool or inside a caller's
// transaction.
type dbExecer interface {
	ExecContext(ctx context.Context, query string, args ...interface{}) (sql.Result, error)
}

func execer(repo *Repository, tx *sql.Tx) dbExecer {
	if tx != nil {
		return tx
	}
	return repo.db
}

func pqStringArray[T ~string](vals []T) interface{} {
	strs := make([]string, 0, len(vals))
	for _, v := range vals {
		strs = append(strs, string(v))
	}
	return pq.Array(strs)
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

//// Test utils

func (repo *Repository) TestGetDB() *sql.DB {
	return repo.db
}
