package hub

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/castarchive/castarchive/internal/httpclient"
	"github.com/castarchive/castarchive/internal/models"
	"github.com/castarchive/castarchive/internal/retry"
	"github.com/castarchive/castarchive/pkg/config"
)

var endToken = base64.StdEncoding.EncodeToString([]byte("[null,null]"))

func TestIsEndToken(t *testing.T) {
	tests := []struct {
		name     string
		token    string
		expected bool
	}{
		{"empty", "", true},
		{"null pair", endToken, true},
		{"not base64", "%%%", true},
		{"real cursor", base64.StdEncoding.EncodeToString([]byte(`[123,"abc"]`)), false},
		{"unpadded cursor", base64.RawStdEncoding.EncodeToString([]byte(`[123,"ab"]`)), false},
		{"url-safe cursor", base64.URLEncoding.EncodeToString([]byte{0xfb, 0xff, 0xfe, '[', '1', ']'}), false},
		{"unpadded url-safe cursor", base64.RawURLEncoding.EncodeToString([]byte{0xfb, 0xff}), false},
		{"unpadded null pair", base64.RawStdEncoding.EncodeToString([]byte(endPageToken)), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, isEndToken(tt.token))
		})
	}
}

func castAdd(fid uint64, hash string) models.Message {
	return models.Message{
		Hash: hash,
		Data: &models.MessageData{
			Type:        "MESSAGE_TYPE_CAST_ADD",
			FID:         fid,
			CastAddBody: &models.CastAddBody{Text: "reply"},
		},
	}
}

func reaction(hash string) models.Message {
	return models.Message{Hash: hash, Data: &models.MessageData{Type: "MESSAGE_TYPE_REACTION_ADD", FID: 3}}
}

// hubServer serves pages[parentHash][token] where the first page has token ""
func hubServer(t *testing.T, pages map[string]map[string]models.MessagesPage, requests *int32) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(requests, 1)
		assert.Equal(t, "/v1/castsByParent", r.URL.Path)
		assert.Equal(t, "false", r.URL.Query().Get("reverse"))
		assert.Equal(t, "2", r.URL.Query().Get("pageSize"))

		byToken := pages[r.URL.Query().Get("hash")]
		page, ok := byToken[r.URL.Query().Get("pageToken")]
		if !ok {
			page = models.MessagesPage{Messages: []models.Message{}, NextPageToken: endToken}
		}
		_ = json.NewEncoder(w).Encode(page)
	}))
}

func newTestClient(t *testing.T, url string, maxMessages int) *Client {
	t.Helper()
	policy := retry.Policy{Times: 2, Backoff: func(int) time.Duration { return time.Millisecond }}
	c, err := NewClient(&config.HubConfig{URL: url + "/v1", PageSize: 2, MaxMessages: maxMessages}, policy, httpclient.WithLogger(zap.NewNop()))
	require.NoError(t, err)
	return c
}

func TestClient_CastsByParent(t *testing.T) {
	var requests int32
	pages := map[string]map[string]models.MessagesPage{
		"0xroot": {
			// hub returns twice the page size
			"":         {Messages: []models.Message{castAdd(2, "0xa"), castAdd(2, "0xb"), reaction("0xr"), castAdd(3, "0xc")}, NextPageToken: "cGFnZTI="},
			"cGFnZTI=": {Messages: []models.Message{castAdd(4, "0xd")}, NextPageToken: "cGFnZTM="},
		},
	}
	srv := hubServer(t, pages, &requests)
	defer srv.Close()

	msgs, err := newTestClient(t, srv.URL, 1000).CastsByParent(context.Background(), 1, "0xroot")
	require.NoError(t, err)

	var got []string
	for _, m := range msgs {
		got = append(got, m.Hash)
	}
	assert.Equal(t, []string{"0xa", "0xb", "0xc", "0xd"}, got)
	// second page held one cast-add, below pageSize, so no third request
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestClient_CastsByParent_EndToken(t *testing.T) {
	var requests int32
	pages := map[string]map[string]models.MessagesPage{
		"0xroot": {
			"": {Messages: []models.Message{castAdd(2, "0xa"), castAdd(2, "0xb")}, NextPageToken: endToken},
		},
	}
	srv := hubServer(t, pages, &requests)
	defer srv.Close()

	msgs, err := newTestClient(t, srv.URL, 1000).CastsByParent(context.Background(), 1, "0xroot")
	require.NoError(t, err)
	assert.Len(t, msgs, 2)
	assert.Equal(t, int32(1), atomic.LoadInt32(&requests))
}

func TestClient_CastsByParent_MaxMessages(t *testing.T) {
	var requests int32
	byToken := map[string]models.MessagesPage{}
	for i := 0; i < 10; i++ {
		token := ""
		if i > 0 {
			token = fmt.Sprintf("dG9rZW4%d", i)
		}
		byToken[token] = models.MessagesPage{
			Messages:      []models.Message{castAdd(2, fmt.Sprintf("0x%da", i)), castAdd(2, fmt.Sprintf("0x%db", i))},
			NextPageToken: fmt.Sprintf("dG9rZW4%d", i+1),
		}
	}
	srv := hubServer(t, map[string]map[string]models.MessagesPage{"0xroot": byToken}, &requests)
	defer srv.Close()

	msgs, err := newTestClient(t, srv.URL, 4).CastsByParent(context.Background(), 1, "0xroot")
	require.NoError(t, err)
	assert.Len(t, msgs, 4)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestClient_CastsByParent_FailureYieldsEmpty(t *testing.T) {
	var requests int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&requests, 1)
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	msgs, err := newTestClient(t, srv.URL, 1000).CastsByParent(context.Background(), 1, "0xroot")
	require.NoError(t, err)
	assert.Empty(t, msgs)
	assert.Equal(t, int32(2), atomic.LoadInt32(&requests))
}

func TestTraverse_OverHub(t *testing.T) {
	var requests int32
	pages := map[string]map[string]models.MessagesPage{
		"h0": {"": {Messages: []models.Message{castAdd(2, "h1"), castAdd(3, "h2")}, NextPageToken: endToken}},
		"h1": {"": {Messages: []models.Message{castAdd(1, "h0")}, NextPageToken: endToken}},
	}
	srv := hubServer(t, pages, &requests)
	defer srv.Close()

	tr := NewTraverser(newTestClient(t, srv.URL, 1000), zap.NewNop())
	nodes, err := tr.Traverse(context.Background(), 1, "h0")
	require.NoError(t, err)

	assert.Equal(t, []models.Node{{FID: 1, Hash: "h0"}, {FID: 2, Hash: "h1"}, {FID: 3, Hash: "h2"}}, nodes)
	assert.Equal(t, int32(3), atomic.LoadInt32(&requests))
}
