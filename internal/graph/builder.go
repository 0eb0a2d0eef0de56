package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/datachat/backend/internal/dataset"
	"github.com/datachat/backend/pkg/logger"
)

// Builder turns an uploaded dataset into its variable graph.
type Builder struct {
	client *Client
}

func NewBuilder(client *Client) *Builder {
	return &Builder{client: client}
}

// BuildSessionGraph replaces the session's graph with one node per column
// and an edge per strong correlation. Partial failures skip the node or edge
// and keep going; the graph is a hint source, not a system of record.
func (b *Builder) BuildSessionGraph(ctx context.Context, sessionID string, frame *dataset.Frame) error {
	logger.Info("Building variable graph", zap.String("session_id", sessionID))

	if err := b.client.ClearSession(ctx, sessionID); err != nil {
		logger.Warn("Failed to clear session graph", zap.String("session_id", sessionID), zap.Error(err))
	}

	dtypes := frame.Dtypes()
	study := dataset.IdentifyStudyVariables(frame.Columns())

	created := 0
	for _, col := range frame.Columns() {
		variable := &Variable{
			SessionID: sessionID,
			Name:      col,
			Dtype:     dtypes[col],
			Role:      study.Role(col),
		}
		if err := b.client.CreateVariable(ctx, variable); err != nil {
			logger.Warn("Failed to create variable node", zap.String("name", col), zap.Error(err))
			continue
		}
		created++
	}

	edges := 0
	for _, pair := range frame.Correlations() {
		if !pair.Strong() {
			continue
		}
		err := b.client.CreateCorrelation(ctx, sessionID, pair.A, pair.B, pair.R, pair.StrengthLabel())
		if err != nil {
			logger.Warn("Failed to create correlation edge",
				zap.String("a", pair.A),
				zap.String("b", pair.B),
				zap.Error(err),
			)
			continue
		}
		edges++
	}

	logger.Info("Variable graph built",
		zap.String("session_id", sessionID),
		zap.Int("variables", created),
		zap.Int("correlations", edges),
	)
	return nil
}

// RelatedVariableHints formats neighbor lookups for the given variables into
// prompt lines. Empty on any failure.
func (b *Builder) RelatedVariableHints(ctx context.Context, sessionID string, variables []string) []string {
	var hints []string
	for _, name := range variables {
		neighbors, err := b.client.Neighbors(ctx, sessionID, name)
		if err != nil {
			logger.Warn("Neighbor lookup failed", zap.String("name", name), zap.Error(err))
			continue
		}
		for _, n := range neighbors {
			hints = append(hints, formatHint(name, n))
		}
	}
	return hints
}

func formatHint(name string, n Neighbor) string {
	return fmt.Sprintf("%s correlates with %s (r=%.2f, %s)", name, n.Name, n.R, n.Strength)
}
