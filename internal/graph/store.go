// Package graph persists the knowledge graph. The database engine is an
// external collaborator reached over Bolt; this package only relies on its
// MERGE and CREATE-INDEX semantics.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Querier runs a parameterized query and returns its rows. Both the writer
// and the retrieval strategies depend on this rather than on the driver.
type Querier interface {
	Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// Store wraps the Bolt driver with connectivity validation.
type Store struct {
	driver   neo4j.DriverWithContext
	database string
}

// NewStore connects to the graph database and verifies connectivity with
// exponential backoff, failing fast if the server stays unreachable.
func NewStore(ctx context.Context, uri, username, password, database string) (*Store, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create driver: %w", err)
	}

	s := &Store{driver: driver, database: database}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second

	operation := func() error {
		return s.driver.VerifyConnectivity(ctx)
	}
	if err := backoff.Retry(operation, backoff.WithContext(b, ctx)); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return s, nil
}

// Run implements Querier. Queries are always parameterized; no caller ever
// concatenates user-controlled values into query text.
func (s *Store) Run(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	result, err := neo4j.ExecuteQuery(ctx, s.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(s.database))
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}

	rows := make([]map[string]any, len(result.Records))
	for i, record := range result.Records {
		rows[i] = record.AsMap()
	}
	return rows, nil
}

// Close releases the driver's connections.
func (s *Store) Close(ctx context.Context) error {
	return s.driver.Close(ctx)
}
