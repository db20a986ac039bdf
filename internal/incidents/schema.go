package incidents

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
)

// DecisionsTableMetadata describes the risk_decisions table: schema inferred
// from DecisionRow, partitioned by day on decided_ts.
func DecisionsTableMetadata() (*bigquery.TableMetadata, error) {
	schema, err := bigquery.InferSchema(DecisionRow{})
	if err != nil {
		return nil, fmt.Errorf("DecisionsTableMetadata: infer schema: %w", err)
	}
	return &bigquery.TableMetadata{
		Description: "One row per transfer risk decision",
		Schema:      schema,
		TimePartitioning: &bigquery.TimePartitioning{
			Type:  bigquery.DayPartitioningType,
			Field: "decided_ts",
		},
		Clustering: &bigquery.Clustering{Fields: []string{"account_id", "disposition"}},
	}, nil
}

// EnsureDecisionsTable creates the dataset and the risk_decisions table when
// they do not exist yet. It reports whether anything was created.
func EnsureDecisionsTable(ctx context.Context, client *bigquery.Client, dataset, location string) (bool, error) {
	created := false

	ds := client.Dataset(dataset)
	if _, err := ds.Metadata(ctx); err != nil {
		if !isNotFound(err) {
			return false, fmt.Errorf("EnsureDecisionsTable: dataset metadata: %w", err)
		}
		if err := ds.Create(ctx, &bigquery.DatasetMetadata{Location: location}); err != nil {
			return false, fmt.Errorf("EnsureDecisionsTable: create dataset %s: %w", dataset, err)
		}
		created = true
	}

	table := ds.Table(DefaultDecisionsTable)
	if _, err := table.Metadata(ctx); err == nil {
		return created, nil
	} else if !isNotFound(err) {
		return false, fmt.Errorf("EnsureDecisionsTable: table metadata: %w", err)
	}

	md, err := DecisionsTableMetadata()
	if err != nil {
		return false, err
	}
	if err := table.Create(ctx, md); err != nil {
		return false, fmt.Errorf("EnsureDecisionsTable: create table: %w", err)
	}
	return true, nil
}

func isNotFound(err error) bool {
	var apiErr *googleapi.Error
	return errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound
}
