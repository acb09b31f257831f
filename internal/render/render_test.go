package render

import (
	"context"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/castarchive/castarchive/internal/db"
	"github.com/castarchive/castarchive/internal/models"
	"github.com/castarchive/castarchive/pkg/config"
)

const (
	rootHash  = "0xaaaaaaaa11111111"
	replyHash = "0xbbbbbbbb22222222"
	orphan    = "0xcccccccc33333333"
)

func seed(t *testing.T) *db.Repository {
	t.Helper()
	ctx := context.Background()
	d, err := db.New(&config.DatabaseConfig{URL: filepath.Join(t.TempDir(), "queue.db3")}, "ERROR")
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	repo := db.NewRepository(d.DB)

	_, err = repo.Users().InsertIfAbsent(ctx, &models.UserRecord{FID: 1, Username: "alice", DisplayName: "Alice", Avatar: "https://img/a.png", Bio: "gm"})
	require.NoError(t, err)
	_, err = repo.Users().InsertIfAbsent(ctx, &models.UserRecord{FID: 2, Username: "bob"})
	require.NoError(t, err)

	parentFID := uint64(1)
	parent := rootHash
	missingFID := uint64(77)
	missing := "0xdeadbeef00000000"
	rows := []*models.CastRecord{
		{
			Hash: rootHash, FID: 1, Timestamp: time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
			Data: `{"hash":"` + rootHash + `","text":"hello world","timestamp":"2024-03-01T12:00:00.000Z","author":{"fid":1},` +
				`"channel":{"id":"dev","name":"dev","image_url":"https://img/dev.png"},` +
				`"embeds":[{"url":"https://img/pic.jpg","metadata":{"content_type":"image/jpeg"}},{"url":"https://example.com"}]}`,
		},
		{
			Hash: replyHash, FID: 2, ParentFID: &parentFID, ParentHash: &parent, Timestamp: time.Date(2024, 3, 1, 12, 5, 30, 0, time.UTC),
			Data: `{"hash":"` + replyHash + `","text":"reply","timestamp":"2024-03-01T12:05:30.000Z","author":{"fid":2},` +
				`"parent_hash":"` + rootHash + `","parent_author":{"fid":1},"thread_hash":"` + rootHash + `"}`,
		},
		{
			Hash: orphan, FID: 2, ParentFID: &missingFID, ParentHash: &missing, Timestamp: time.Date(2024, 3, 2, 0, 0, 0, 0, time.UTC),
			Data: `{"hash":"` + orphan + `","text":"lost","timestamp":"2024-03-02T00:00:00Z","author":{"fid":2},` +
				`"parent_hash":"` + missing + `","parent_author":{"fid":77}}`,
		},
	}
	for _, r := range rows {
		_, err := repo.Casts().InsertIfAbsent(ctx, r)
		require.NoError(t, err)
	}
	return repo
}

func read(t *testing.T, fs afero.Fs, name string) string {
	t.Helper()
	data, err := afero.ReadFile(fs, name)
	require.NoError(t, err, name)
	return string(data)
}

func TestCastFile(t *testing.T) {
	tests := []struct {
		ts       time.Time
		hash     string
		expected string
	}{
		{time.Date(2024, 3, 1, 12, 5, 30, 0, time.UTC), "0xabcdef0123456789", "20240301-120530-abcdef01.md"},
		{time.Date(2024, 3, 1, 23, 0, 0, 0, time.FixedZone("x", -2*3600)), "0xabcdef0123456789", "20240302-010000-abcdef01.md"},
		{time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), "0xab", "20240101-000000-ab.md"},
	}
	for _, tt := range tests {
		if got := CastFile(tt.ts, tt.hash); got != tt.expected {
			t.Errorf("CastFile(%v, %s) = %s, expected %s", tt.ts, tt.hash, got, tt.expected)
		}
	}
}

func TestReplyFooter(t *testing.T) {
	assert.Equal(t, "", replyFooter(0))
	assert.Equal(t, "1 Reply", replyFooter(1))
	assert.Equal(t, "3 Replies", replyFooter(3))
}

func TestRenderer_RenderUsers(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := NewRenderer(fs, "out", seed(t), zap.NewNop())

	res, err := r.RenderUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Written: 2}, res)

	alice := read(t, fs, "out/_users_/alice.md")
	assert.Contains(t, alice, "username: alice\nfid: 1\ndisplay name: Alice\n")
	assert.Contains(t, alice, "PFP: [https://img/a.png](https://img/a.png)")
	assert.Contains(t, alice, `<img src="https://img/a.png" height="100" width="100" alt="Alice" />`)
	assert.True(t, strings.HasSuffix(alice, "---\naaaaaaaa11111111\n"), alice)

	bob := read(t, fs, "out/_users_/bob.md")
	assert.Contains(t, bob, "display name: unknown")
	assert.Contains(t, bob, "no avatar")

	// Existing files are skipped
	res, err = r.RenderUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 2}, res)
}

func TestRenderer_RenderCasts(t *testing.T) {
	fs := afero.NewMemMapFs()
	r := NewRenderer(fs, "out", seed(t), zap.NewNop())

	res, err := r.RenderCasts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Written: 3}, res)

	root := read(t, fs, "out/alice/20240301-120000-aaaaaaaa.md")
	assert.True(t, strings.HasPrefix(root, "---\nhash: aaaaaaaa11111111\ntimestamp: 2024-03-01T12:00:00.000Z\nfid: 1\n---\n"), root)
	assert.Contains(t, root, "[alice](../_users_/alice.md)\n--\nhello world\n")
	assert.Contains(t, root, `<img src="https://img/pic.jpg" alt="embedded image" />`)
	assert.Contains(t, root, "[https://example.com](https://example.com)")
	assert.Contains(t, root, "--\n1 Reply\n")
	assert.Contains(t, root, `dev <img src="https://img/dev.png" height="20" width="20" alt="dev" />`)
	assert.NotContains(t, root, "replying to")

	reply := read(t, fs, "out/bob/20240301-120530-bbbbbbbb.md")
	assert.Contains(t, reply, "parent_fid: 1\nparent_hash: aaaaaaaa11111111\nroot_parent_hash: aaaaaaaa11111111\n")
	assert.Contains(t, reply, "replying to: [alice](../alice/20240301-120000-aaaaaaaa.md)")
	assert.Contains(t, reply, "{no channel}")
	assert.NotContains(t, reply, "Reply\n")

	lost := read(t, fs, "out/bob/20240302-000000-cccccccc.md")
	assert.Contains(t, lost, "replying to: [unknown-77](<deleted>)")

	res, err = r.RenderCasts(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Result{Skipped: 3}, res)
}

func TestRenderer_UnknownAuthorGetsPlaceholder(t *testing.T) {
	ctx := context.Background()
	repo := seed(t)
	_, err := repo.Casts().InsertIfAbsent(ctx, &models.CastRecord{
		Hash: "0xeeeeeeee44444444", FID: 55, Timestamp: time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC),
		Data: `{"hash":"0xeeeeeeee44444444","text":"who","timestamp":"2024-04-01T00:00:00Z","author":{"fid":55}}`,
	})
	require.NoError(t, err)

	fs := afero.NewMemMapFs()
	_, casts, err := NewRenderer(fs, "out", repo, zap.NewNop()).Render(ctx)
	require.NoError(t, err)
	assert.Equal(t, 4, casts.Written)

	got := read(t, fs, "out/unknown-55/20240401-000000-eeeeeeee.md")
	assert.Contains(t, got, "[unknown-55](../_users_/unknown-55.md)")
}
