package utils

import (
	"os"

	"github.com/joho/godotenv"
)

var (
	// optional .env, must stay first so the vars below see it
	_ = godotenv.Load()

	CRDB_DSN = os.Getenv("CRDB_DSN")

	GOOGLE_APPLICATION_CREDENTIALS = os.Getenv("GOOGLE_APPLICATION_CREDENTIALS")
	// BQ_ENDPOINT overrides the BigQuery REST endpoint, e.g. for an emulator
	BQ_ENDPOINT = os.Getenv("BQ_ENDPOINT")

	PROJECT_ID = os.Getenv("PROJECT_ID")
	DATASET_ID = os.Getenv("DATASET_ID")
	TABLE_ID   = os.Getenv("TABLE_ID")

	MAX_BATCH_ROWS      = GetEnvOrDefaultInt("MAX_BATCH_ROWS", 500)
	MAX_BATCH_BYTES     = GetEnvOrDefaultInt("MAX_BATCH_BYTES", 10_000_000)
	GENERATE_INSERT_IDS = os.Getenv("GENERATE_INSERT_IDS") == "1"

	DEAD_LETTER_DIR = os.Getenv("DEAD_LETTER_DIR")

	AWS_ACCESS_KEY_ID     = os.Getenv("AWS_ACCESS_KEY_ID")
	AWS_SECRET_ACCESS_KEY = os.Getenv("AWS_SECRET_ACCESS_KEY")
	AWS_DEFAULT_REGION    = GetEnvOrDefault("AWS_DEFAULT_REGION", "us-east-1")

	S3_BUCKET_NAME = os.Getenv("S3_BUCKET_NAME")
	S3_ENDPOINT    = os.Getenv("S3_ENDPOINT")
)
