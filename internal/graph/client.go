// Package graph maintains an optional Neo4j graph of dataset variables:
// one Variable node per column, CORRELATES_WITH edges for strong Pearson
// pairs. The chat and suggestion prompts use neighbor lookups for
// related-variable hints. Every failure here degrades to a Warn log.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/datachat/backend/pkg/circuitbreaker"
	"github.com/datachat/backend/pkg/config"
	"github.com/datachat/backend/pkg/logger"
	"github.com/datachat/backend/pkg/retry"
)

type Client struct {
	driver      neo4j.DriverWithContext
	database    string
	cb          *circuitbreaker.CircuitBreaker
	retryConfig retry.Config
}

// Variable is one dataset column as stored in the graph.
type Variable struct {
	SessionID string
	Name      string
	Dtype     string
	Role      string
}

// Neighbor is a variable correlated with the one queried.
type Neighbor struct {
	Name     string
	Dtype    string
	Role     string
	R        float64
	Strength string
}

func NewClient(cfg config.Neo4jConfig) (*Client, error) {
	driver, err := neo4j.NewDriverWithContext(
		cfg.URI,
		neo4j.BasicAuth(cfg.Username, cfg.Password, ""),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}

	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		return nil, fmt.Errorf("failed to verify connectivity: %w", err)
	}

	cb := circuitbreaker.NewCircuitBreaker("neo4j", circuitbreaker.Config{
		MaxRequests:      3,
		Interval:         time.Minute,
		Timeout:          20 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    3,
		InitialDelay:   200 * time.Millisecond,
		MaxDelay:       3 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		Logger:         logger.GetLogger(),
	}

	logger.Info("Neo4j client initialized", zap.String("uri", cfg.URI))

	return &Client{
		driver:      driver,
		database:    cfg.Database,
		cb:          cb,
		retryConfig: retryConfig,
	}, nil
}

func (c *Client) Close(ctx context.Context) error {
	return c.driver.Close(ctx)
}

func (c *Client) executeWithRetry(ctx context.Context, operation func(neo4j.SessionWithContext) error) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	return c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
			defer session.Close(ctx)
			return operation(session)
		})
	})
}

// ClearSession removes every variable node (and its edges) for a session so
// a rebuild starts clean.
func (c *Client) ClearSession(ctx context.Context, sessionID string) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	_, err := session.Run(ctx,
		`MATCH (v:Variable {session_id: $session_id}) DETACH DELETE v`,
		map[string]interface{}{"session_id": sessionID},
	)
	if err != nil {
		return fmt.Errorf("failed to clear session graph: %w", err)
	}
	return nil
}

func (c *Client) CreateVariable(ctx context.Context, v *Variable) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	query := `
		MERGE (v:Variable {session_id: $session_id, name: $name})
		SET v.dtype = $dtype,
		    v.role = $role,
		    v.created_at = timestamp()
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"session_id": v.SessionID,
		"name":       v.Name,
		"dtype":      v.Dtype,
		"role":       v.Role,
	})
	if err != nil {
		return fmt.Errorf("failed to create variable: %w", err)
	}

	logger.Debug("Variable created in graph",
		zap.String("session_id", v.SessionID),
		zap.String("name", v.Name),
	)
	return nil
}

func (c *Client) CreateCorrelation(ctx context.Context, sessionID, a, b string, r float64, strength string) error {
	session := c.driver.NewSession(ctx, neo4j.SessionConfig{DatabaseName: c.database})
	defer session.Close(ctx)

	query := `
		MATCH (a:Variable {session_id: $session_id, name: $a})
		MATCH (b:Variable {session_id: $session_id, name: $b})
		MERGE (a)-[rel:CORRELATES_WITH]->(b)
		SET rel.r = $r,
		    rel.strength = $strength,
		    rel.created_at = timestamp()
	`

	_, err := session.Run(ctx, query, map[string]interface{}{
		"session_id": sessionID,
		"a":          a,
		"b":          b,
		"r":          r,
		"strength":   strength,
	})
	if err != nil {
		return fmt.Errorf("failed to create correlation: %w", err)
	}

	logger.Debug("Correlation created in graph",
		zap.String("a", a),
		zap.String("b", b),
		zap.Float64("r", r),
	)
	return nil
}

// Neighbors returns the variables correlated with the named one, strongest
// first.
func (c *Client) Neighbors(ctx context.Context, sessionID, name string) ([]Neighbor, error) {
	var neighbors []Neighbor

	err := c.executeWithRetry(ctx, func(session neo4j.SessionWithContext) error {
		query := `
			MATCH (v:Variable {session_id: $session_id, name: $name})-[rel:CORRELATES_WITH]-(o:Variable)
			RETURN o.name, o.dtype, o.role, rel.r, rel.strength
			ORDER BY abs(rel.r) DESC
			LIMIT 10
		`

		result, err := session.Run(ctx, query, map[string]interface{}{
			"session_id": sessionID,
			"name":       name,
		})
		if err != nil {
			return fmt.Errorf("failed to query neighbors: %w", err)
		}

		neighbors = nil
		for result.Next(ctx) {
			record := result.Record()

			oName, _ := record.Get("o.name")
			oDtype, _ := record.Get("o.dtype")
			oRole, _ := record.Get("o.role")
			r, _ := record.Get("rel.r")
			strength, _ := record.Get("rel.strength")

			neighbor := Neighbor{}
			if s, ok := oName.(string); ok {
				neighbor.Name = s
			}
			if s, ok := oDtype.(string); ok {
				neighbor.Dtype = s
			}
			if s, ok := oRole.(string); ok {
				neighbor.Role = s
			}
			if f, ok := r.(float64); ok {
				neighbor.R = f
			}
			if s, ok := strength.(string); ok {
				neighbor.Strength = s
			}
			neighbors = append(neighbors, neighbor)
		}

		if err := result.Err(); err != nil {
			return fmt.Errorf("error iterating results: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Graph neighbors queried",
		zap.String("session_id", sessionID),
		zap.String("name", name),
		zap.Int("results", len(neighbors)),
	)
	return neighbors, nil
}
