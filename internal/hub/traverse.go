package hub

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/castarchive/castarchive/internal/models"
	"github.com/castarchive/castarchive/pkg/logging"
	"github.com/castarchive/castarchive/pkg/telemetry"
)

// ChildLister returns the direct replies of a message
type ChildLister interface {
	Children(ctx context.Context, fid uint64, hash string) ([]models.Node, error)
}

// Traverser walks a reply graph breadth first
type Traverser struct {
	children ChildLister
	logger   *zap.Logger
}

// NewTraverser creates a traverser over children
func NewTraverser(children ChildLister, logger *zap.Logger) *Traverser {
	if logger == nil {
		logger = logging.WithComponent("traverse")
	}
	return &Traverser{children: children, logger: logger}
}

// Traverse returns every message reachable from (fid, hash), the start included, in
// discovery order. Each hash is expanded at most once, so cycles and messages with
// several parents terminate.
func (t *Traverser) Traverse(ctx context.Context, fid uint64, hash string) ([]models.Node, error) {
	ctx, span := telemetry.StartSpan(ctx, "hub.traverse")
	defer span.End()

	seen := make(map[string]uint64)
	var found []models.Node
	queue := []models.Node{{FID: fid, Hash: hash}}

	for len(queue) > 0 {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		next := queue[0]
		queue = queue[1:]
		if _, ok := seen[next.Hash]; ok {
			continue
		}
		seen[next.Hash] = next.FID
		found = append(found, next)

		children, err := t.children.Children(ctx, next.FID, next.Hash)
		if err != nil {
			return nil, err
		}
		queue = append(queue, children...)
	}

	span.SetAttributes(attribute.Int("nodes", len(found)))
	t.logger.Debug("Traversed thread",
		zap.Uint64("fid", fid),
		zap.String("hash", hash),
		zap.Int("nodes", len(found)))
	return found, nil
}
