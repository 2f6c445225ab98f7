package crdb

import (
	"context"
	"fmt"
	"time"

	"github.com/danthegoodman1/bqstream/gologger"
	"github.com/danthegoodman1/bqstream/utils"
	"github.com/jackc/pgx/v4/pgxpool"
)

var (
	PGPool                 *pgxpool.Pool
	StandardContextTimeout = 10 * time.Second

	logger = gologger.NewComponentLogger("crdb")
)

// ConnectToDB opens PGPool against CRDB_DSN
func ConnectToDB(ctx context.Context) error {
	logger.Debug().Msg("connecting to CRDB...")
	pool, err := NewPool(ctx, utils.CRDB_DSN)
	if err != nil {
		return err
	}
	PGPool = pool
	logger.Debug().Msg("connected to CRDB")
	return nil
}

func NewPool(ctx context.Context, dsn string) (*pgxpool.Pool, error) {
	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("error in pgxpool.ParseConfig: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 1
	config.HealthCheckPeriod = time.Second * 5
	config.MaxConnLifetime = time.Minute * 30
	config.MaxConnIdleTime = time.Minute * 30

	pool, err := pgxpool.ConnectConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("error in pgxpool.ConnectConfig: %w", err)
	}
	return pool, nil
}
