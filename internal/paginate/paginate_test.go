package paginate

import (
	"context"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/castarchive/castarchive/internal/retry"
)

type page struct {
	items  []int
	cursor string
}

// sliceSource serves sizes[i] items on page i, with a cursor on every page but the last
func sliceSource(sizes []int, pageSize int, failOn map[int]bool, calls *int) Source[page] {
	return Source[page]{
		Name: "test",
		Fetch: func(_ context.Context, cursor string) (page, error) {
			*calls++
			idx := 0
			if cursor != "" {
				idx, _ = strconv.Atoi(cursor)
			}
			if failOn[idx] {
				return page{}, errors.New("unavailable")
			}
			p := page{items: make([]int, sizes[idx])}
			for i := range p.items {
				p.items[i] = idx*1000 + i
			}
			if idx+1 < len(sizes) {
				p.cursor = strconv.Itoa(idx + 1)
			}
			return p, nil
		},
		Merge: func(acc, p page) page {
			acc.items = append(acc.items, p.items...)
			acc.cursor = p.cursor
			return acc
		},
		Next: func(p page) (string, bool) {
			return p.cursor, p.cursor != "" && len(p.items) >= pageSize
		},
		Size: func(acc page) int { return len(acc.items) },
	}
}

func testPolicy() retry.Policy {
	return retry.Policy{Times: 2, Backoff: func(int) time.Duration { return time.Millisecond }}
}

func TestRun(t *testing.T) {
	tests := []struct {
		name          string
		sizes         []int
		limit         int
		expectedItems int
		expectedCalls int
	}{
		{"single short page", []int{7}, 0, 7, 1},
		{"three pages", []int{50, 50, 20}, 0, 120, 3},
		{"exact multiple ends on missing cursor", []int{50, 50}, 0, 100, 2},
		{"short page ends even with cursor", []int{50, 10, 50}, 0, 60, 2},
		{"limit stops before next fetch", []int{50, 50, 50, 50}, 100, 100, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			src := sliceSource(tt.sizes, 50, nil, &calls)
			src.Limit = tt.limit

			res, err := Run(context.Background(), testPolicy(), zap.NewNop(), src)
			require.NoError(t, err)
			assert.True(t, res.Complete())
			assert.Len(t, res.Value.items, tt.expectedItems)
			assert.Equal(t, tt.expectedCalls, calls)
			assert.Equal(t, tt.expectedCalls, res.Pages)
		})
	}
}

func TestRun_NoDropsAcrossPages(t *testing.T) {
	calls := 0
	res, err := Run(context.Background(), testPolicy(), zap.NewNop(), sliceSource([]int{50, 50, 20}, 50, nil, &calls))
	require.NoError(t, err)

	seen := make(map[int]bool)
	for _, v := range res.Value.items {
		seen[v] = true
	}
	assert.Len(t, seen, 120)
	assert.True(t, seen[0])
	assert.True(t, seen[1049])
	assert.True(t, seen[2019])
}

func TestRun_KeepsPartialResultOnPageFailure(t *testing.T) {
	calls := 0
	src := sliceSource([]int{50, 50, 50}, 50, map[int]bool{2: true}, &calls)

	res, err := Run(context.Background(), testPolicy(), zap.NewNop(), src)
	require.NoError(t, err)
	assert.False(t, res.Complete())
	assert.Len(t, res.Value.items, 100)
	assert.Equal(t, 2, res.Pages)
	// two successful pages plus the retry budget on the third
	assert.Equal(t, 4, calls)
}

func TestRun_FirstPageFailure(t *testing.T) {
	calls := 0
	src := sliceSource([]int{50}, 50, map[int]bool{0: true}, &calls)

	_, err := Run(context.Background(), testPolicy(), zap.NewNop(), src)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoResponse)
}

func TestRun_FirstTransformsBase(t *testing.T) {
	calls := 0
	src := sliceSource([]int{3}, 50, nil, &calls)
	src.First = func(p page) page {
		p.items = p.items[:1]
		return p
	}

	res, err := Run(context.Background(), testPolicy(), zap.NewNop(), src)
	require.NoError(t, err)
	assert.Equal(t, []int{0}, res.Value.items)
}
