package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danthegoodman1/bqstream/bq"
	"github.com/danthegoodman1/bqstream/crdb"
	"github.com/danthegoodman1/bqstream/datastore"
	"github.com/danthegoodman1/bqstream/deadletter"
	"github.com/danthegoodman1/bqstream/gologger"
	"github.com/danthegoodman1/bqstream/http_server"
	"github.com/danthegoodman1/bqstream/ledger"
	"github.com/danthegoodman1/bqstream/migrations"
	"github.com/danthegoodman1/bqstream/s3_helper"
	"github.com/danthegoodman1/bqstream/utils"
)

var logger = gologger.NewLogger()

func main() {
	logger.Debug().Msg("starting bqstream")
	ctx := logger.WithContext(context.Background())

	client, err := bq.NewClientFromEnv(ctx)
	if err != nil {
		logger.Error().Err(err).Msg("error creating BigQuery client")
		os.Exit(1)
	}

	var dlWriter http_server.DeadLetterWriter
	if store, err := deadLetterStore(); err != nil {
		logger.Error().Err(err).Msg("error creating dead letter store")
		os.Exit(1)
	} else if store != nil {
		defer store.Shutdown(ctx)
		dlWriter = deadletter.NewWriter(store)
	}

	var batchLedger http_server.BatchLedger
	if utils.CRDB_DSN != "" {
		if err := crdb.ConnectToDB(ctx); err != nil {
			logger.Error().Err(err).Msg("error connecting to CRDB")
			os.Exit(1)
		}
		if _, err := migrations.RunMigrations(utils.CRDB_DSN); err != nil {
			logger.Error().Err(err).Msg("error running migrations")
			os.Exit(1)
		}
		if err := migrations.CheckMigrations(utils.CRDB_DSN); err != nil {
			logger.Error().Err(err).Msg("Error checking migrations")
			os.Exit(1)
		}
		batchLedger = ledger.New(crdb.PGPool)
	} else {
		logger.Warn().Msg("CRDB_DSN not set, batches will not be recorded")
	}

	httpServer := http_server.StartHTTPServer(http_server.DepsFromEnv(client, dlWriter, batchLedger))

	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	<-c
	logger.Warn().Msg("received shutdown signal!")

	// For AWS ALB needing some time to de-register pod
	sleepTime := utils.GetEnvOrDefaultInt("SHUTDOWN_SLEEP_SEC", 0)
	logger.Info().Msg(fmt.Sprintf("sleeping for %ds before exiting", sleepTime))

	time.Sleep(time.Second * time.Duration(sleepTime))
	logger.Info().Msg(fmt.Sprintf("slept for %ds, exiting", sleepTime))

	shutdownCtx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("failed to shutdown HTTP server")
	} else {
		logger.Info().Msg("successfully shutdown HTTP server")
	}
	if crdb.PGPool != nil {
		crdb.PGPool.Close()
	}
}

// deadLetterStore prefers S3 when a bucket is configured, then DEAD_LETTER_DIR.
// Neither means rejected rows are only logged.
func deadLetterStore() (datastore.DataStore, error) {
	switch {
	case utils.S3_BUCKET_NAME != "":
		s3Client, err := s3_helper.NewClientFromEnv()
		if err != nil {
			return nil, fmt.Errorf("error in s3_helper.NewClientFromEnv: %w", err)
		}
		return datastore.NewS3DataStore(s3Client, "dead_letter/"), nil
	case utils.DEAD_LETTER_DIR != "":
		return datastore.NewDiskDataStore(utils.DEAD_LETTER_DIR)
	default:
		return nil, nil
	}
}
