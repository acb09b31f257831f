// Package paginate assembles a complete result from a cursor-paginated source.
//
// Each source supplies its own fetch, merge and last-page rules; Run only owns the
// loop, the per-page retry and the graceful degradation when a page cannot be fetched.
package paginate

import (
	"context"
	"errors"
	"fmt"

	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/castarchive/castarchive/internal/retry"
	"github.com/castarchive/castarchive/pkg/logging"
	"github.com/castarchive/castarchive/pkg/telemetry"
)

// ErrNoResponse is returned when not even the first page could be fetched
var ErrNoResponse = errors.New("no response received from API")

// Source describes one paginated endpoint
type Source[P any] struct {
	// Name labels logs and spans
	Name string

	// Fetch retrieves the page at cursor ("" for the first page)
	Fetch func(ctx context.Context, cursor string) (P, error)

	// First turns the first page into the accumulator. Defaults to identity.
	First func(page P) P

	// Merge appends a later page into the accumulator
	Merge func(acc P, page P) P

	// Next returns the cursor of the following page and whether it should be fetched
	Next func(page P) (cursor string, more bool)

	// Size and Limit bound the accumulated item count. Limit 0 disables the bound.
	Size  func(acc P) int
	Limit int
}

// Result is an assembled value plus how it was obtained
type Result[P any] struct {
	Value P
	Pages int

	// Err is the page failure that cut assembly short, if any. Value still holds
	// everything merged before it.
	Err error
}

// Complete reports whether every page was fetched
func (r Result[P]) Complete() bool {
	return r.Err == nil
}

// Run fetches pages strictly in cursor order, each through policy, merging as it goes.
// It stops when Next says so, when Limit is reached, or when a page exhausts its retries.
// In the last case the partial result is returned with Result.Err set; only a failure
// on the first page is returned as an error.
func Run[P any](ctx context.Context, policy retry.Policy, logger *zap.Logger, src Source[P]) (Result[P], error) {
	ctx, span := telemetry.StartSpan(ctx, "paginate."+src.Name)
	defer span.End()

	logger = logging.OrNop(logger)
	first := src.First
	if first == nil {
		first = func(page P) P { return page }
	}

	var res Result[P]
	cursor := ""
	for {
		if src.Limit > 0 && res.Pages > 0 && src.Size != nil && src.Size(res.Value) >= src.Limit {
			logger.Warn("Pagination limit reached",
				zap.String("source", src.Name),
				zap.Int("limit", src.Limit),
				zap.Int("pages", res.Pages))
			break
		}

		page, err := retry.Do(ctx, policy, func(ctx context.Context) (P, error) {
			return src.Fetch(ctx, cursor)
		})
		if err != nil {
			if res.Pages == 0 {
				span.RecordError(err)
				return res, fmt.Errorf("%w from %s: %w", ErrNoResponse, src.Name, err)
			}
			logger.Error("Failed to fetch page, keeping partial result",
				zap.String("source", src.Name),
				zap.String("cursor", cursor),
				zap.Int("pages", res.Pages),
				zap.Error(err))
			res.Err = err
			break
		}

		if res.Pages == 0 {
			res.Value = first(page)
		} else {
			res.Value = src.Merge(res.Value, page)
		}
		res.Pages++
		telemetry.Add(ctx, telemetry.PagesFetched, 1, attribute.String("source", src.Name))

		next, more := src.Next(page)
		if !more {
			break
		}
		cursor = next
	}

	span.SetAttributes(attribute.Int("pages", res.Pages))
	return res, nil
}
