// Package graph populates the property graph with apps, repositories
// and their git history. All writes are idempotent merges keyed by a
// declared identity field.
package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/sirupsen/logrus"
)

// Querier executes a Cypher query with parameters and returns the
// result records. The loader depends on this rather than the driver so
// tests can substitute a fake.
type Querier interface {
	ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error)
}

// Client wraps the Neo4j driver with connectivity checks and a query
// helper.
type Client struct {
	driver   neo4j.DriverWithContext
	database string
	log      logrus.FieldLogger
}

// NewClient connects to Neo4j and verifies connectivity before
// returning, so a misconfigured endpoint fails at startup instead of
// mid-run.
func NewClient(ctx context.Context, uri, user, password, database string, log logrus.FieldLogger) (*Client, error) {
	if uri == "" || user == "" {
		return nil, fmt.Errorf("neo4j credentials missing: uri=%q, user=%q", uri, user)
	}

	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}

	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("connect to neo4j at %s: %w", uri, err)
	}

	log.WithFields(logrus.Fields{"uri": uri, "database": database}).
		Info("Connected to Neo4j")

	return &Client{driver: driver, database: database, log: log}, nil
}

// Close releases the driver's connections.
func (c *Client) Close(ctx context.Context) error {
	if err := c.driver.Close(ctx); err != nil {
		return fmt.Errorf("close neo4j driver: %w", err)
	}
	return nil
}

// ExecuteQuery runs one Cypher query and returns its records as maps.
func (c *Client) ExecuteQuery(ctx context.Context, query string, params map[string]any) ([]map[string]any, error) {
	result, err := neo4j.ExecuteQuery(ctx, c.driver, query, params,
		neo4j.EagerResultTransformer,
		neo4j.ExecuteQueryWithDatabase(c.database))
	if err != nil {
		return nil, fmt.Errorf("query execution failed: %w", err)
	}

	records := make([]map[string]any, 0, len(result.Records))
	for _, record := range result.Records {
		records = append(records, record.AsMap())
	}
	return records, nil
}
