package ingest

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/castarchive/castarchive/internal/db"
	"github.com/castarchive/castarchive/internal/models"
	"github.com/castarchive/castarchive/pkg/logging"
	"github.com/castarchive/castarchive/pkg/telemetry"
)

// MaxBatch is the most hashes a single GetCasts call accepts
const MaxBatch = 25

// ErrContractViolation is returned when a caller breaks an operation's preconditions
var ErrContractViolation = errors.New("contract violation")

// CastFetcher fetches casts by hash in one remote call
type CastFetcher interface {
	CastsByHash(ctx context.Context, hashes []string) ([]models.Cast, error)
}

// Hydrator resolves hashes to full casts, archive first
type Hydrator struct {
	casts       *db.CastRepository
	fetcher     CastFetcher
	tagger      *Tagger
	concurrency int
	logger      *zap.Logger
}

// NewHydrator creates a hydrator. concurrency bounds the chunks in flight in HydrateAll.
func NewHydrator(repo *db.Repository, fetcher CastFetcher, tagger *Tagger, concurrency int, logger *zap.Logger) *Hydrator {
	if concurrency <= 0 {
		concurrency = 4
	}
	if logger == nil {
		logger = logging.WithComponent("hydrator")
	}
	return &Hydrator{
		casts:       repo.Casts(),
		fetcher:     fetcher,
		tagger:      tagger,
		concurrency: concurrency,
		logger:      logger,
	}
}

// GetCasts returns the casts for 1 to MaxBatch hashes. Archived casts are read locally
// and the rest are fetched in one call and tagged. When that call fails only the
// archived casts are returned.
func (h *Hydrator) GetCasts(ctx context.Context, hashes []string) ([]models.Cast, error) {
	if len(hashes) == 0 {
		return nil, fmt.Errorf("%w: no hashes given", ErrContractViolation)
	}
	if len(hashes) > MaxBatch {
		return nil, fmt.Errorf("%w: %d hashes given, at most %d allowed", ErrContractViolation, len(hashes), MaxBatch)
	}

	ctx, span := telemetry.StartSpan(ctx, "ingest.get_casts")
	defer span.End()

	rows, err := h.casts.GetByHashes(ctx, hashes)
	if err != nil {
		return nil, fmt.Errorf("failed to read archived casts: %w", err)
	}

	seen := make(map[string]bool, len(rows))
	result := make([]models.Cast, 0, len(hashes))
	for _, row := range rows {
		c, err := row.Cast()
		if err != nil {
			return nil, err
		}
		seen[row.Hash] = true
		result = append(result, *c)
	}
	telemetry.Add(ctx, telemetry.CacheHits, int64(len(rows)), attribute.String("source", "archive"))

	var unseen []string
	for _, hash := range hashes {
		if !seen[hash] {
			seen[hash] = true
			unseen = append(unseen, hash)
		}
	}
	if len(unseen) == 0 {
		return result, nil
	}

	fetched, err := h.fetcher.CastsByHash(ctx, unseen)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		h.logger.Error("Error getting casts", zap.Int("requested", len(unseen)), zap.Error(err))
		return result, nil
	}
	for i := range fetched {
		if err := h.tagger.Tag(ctx, &fetched[i]); err != nil {
			h.logger.Warn("Failed to tag fetched cast", zap.String("hash", fetched[i].Hash), zap.Error(err))
		}
	}
	return append(result, fetched...), nil
}

// HydrateAll resolves every node in chunks of MaxBatch, running chunks concurrently.
// The result holds each cast once.
func (h *Hydrator) HydrateAll(ctx context.Context, nodes []models.Node) ([]models.Cast, error) {
	ctx, span := telemetry.StartSpan(ctx, "ingest.hydrate_all")
	defer span.End()

	var hashes []string
	dedup := make(map[string]bool, len(nodes))
	for _, n := range nodes {
		if !dedup[n.Hash] {
			dedup[n.Hash] = true
			hashes = append(hashes, n.Hash)
		}
	}

	var (
		mu     sync.Mutex
		result []models.Cast
		byHash = make(map[string]bool, len(hashes))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.concurrency)
	for _, chunk := range chunks(hashes, MaxBatch) {
		chunk := chunk
		g.Go(func() error {
			casts, err := h.GetCasts(gctx, chunk)
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			for _, c := range casts {
				if !byHash[c.Hash] {
					byHash[c.Hash] = true
					result = append(result, c)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	h.logger.Debug("Hydrated thread", zap.Int("nodes", len(nodes)), zap.Int("casts", len(result)))
	return result, nil
}

func chunks(items []string, size int) [][]string {
	var out [][]string
	for len(items) > size {
		out = append(out, items[:size])
		items = items[size:]
	}
	if len(items) > 0 {
		out = append(out, items)
	}
	return out
}
