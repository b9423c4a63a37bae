package logscan

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/r3e-network/intent-solver/internal/domain/intent"
)

func TestPollEmitsOneIntentPerLog(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[{"tx_hash":"0xaaa","block_number":10,"data":{"foo":"bar"}},{"tx_hash":"0xbbb","block_number":11,"data":{}}]`)
	}))
	defer srv.Close()

	s, err := New(Config{SourceName: "origin", RPCURL: srv.URL, Standard: "eip7683", RequestsPerSec: 100})
	require.NoError(t, err)

	sink := make(chan intent.Intent, 10)
	require.NoError(t, s.poll(context.Background(), sink))
	close(sink)

	var got []intent.Intent
	for it := range sink {
		got = append(got, it)
	}
	require.Len(t, got, 2)
	assert.Equal(t, "origin", got[0].Source)
	assert.Equal(t, uint64(12), s.lastBlock)
}

func TestPollSkipsAlreadySeenLogs(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		fmt.Fprint(w, `[{"tx_hash":"0xaaa","block_number":10,"data":{}}]`)
	}))
	defer srv.Close()

	s, err := New(Config{SourceName: "origin", RPCURL: srv.URL, Standard: "eip7683", RequestsPerSec: 100})
	require.NoError(t, err)

	sink := make(chan intent.Intent, 10)
	require.NoError(t, s.poll(context.Background(), sink))
	require.NoError(t, s.poll(context.Background(), sink))
	close(sink)

	var got []intent.Intent
	for it := range sink {
		got = append(got, it)
	}
	assert.Len(t, got, 1)
}

func TestNewAppliesDefaults(t *testing.T) {
	s, err := New(Config{SourceName: "origin", RPCURL: "http://example.invalid"})
	require.NoError(t, err)
	assert.Equal(t, 5*time.Second, s.cfg.PollInterval)
}

func TestNewRejectsInvalidCacheSizeGracefully(t *testing.T) {
	s, err := New(Config{SourceName: "origin", RPCURL: "http://example.invalid", DedupCacheSize: -1})
	require.NoError(t, err)
	assert.NotNil(t, s.seen)
}
