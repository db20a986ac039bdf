package main

import (
	"context"
	"flag"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/dvloznov/securebank/internal/config"
	"github.com/dvloznov/securebank/internal/incidents"
	"github.com/dvloznov/securebank/internal/logger"
)

func main() {
	log := logger.New()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	var (
		projectID = flag.String("project", cfg.BQProject, "GCP project ID (or set BQ_PROJECT)")
		datasetID = flag.String("dataset", cfg.BQDataset, "BigQuery dataset ID")
		location  = flag.String("location", "US", "Dataset location, used only when creating it")
	)
	flag.Parse()

	// Validate required flags
	if *projectID == "" {
		log.Fatal().Msg("Error: -project flag is required. Please specify your GCP project ID.")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	client, err := bigquery.NewClient(ctx, *projectID)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create BigQuery client")
	}
	defer client.Close()

	log.Info().Str("project", *projectID).Str("dataset", *datasetID).Msg("Connected to BigQuery")

	created, err := incidents.EnsureDecisionsTable(ctx, client, *datasetID, *location)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to provision decisions table")
	}

	if !created {
		log.Info().Str("table", incidents.DefaultDecisionsTable).Msg("Nothing to do. Dataset is up to date.")
		return
	}
	log.Info().Str("table", incidents.DefaultDecisionsTable).Msg("Created risk decisions table")
}
