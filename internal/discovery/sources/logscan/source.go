// Package logscan is a Discovery source that polls a chain RPC endpoint
// for new events emitted by an escrow contract, the intent format used by
// the end-to-end scenarios of §8.
package logscan

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/time/rate"

	"github.com/google/uuid"

	"github.com/r3e-network/intent-solver/internal/domain/intent"
	"github.com/r3e-network/intent-solver/internal/solvererr"
)

// Config configures a logscan source.
type Config struct {
	SourceName      string
	RPCURL          string
	EscrowAddress   string
	Standard        string
	PollInterval    time.Duration
	RequestsPerSec  float64
	DedupCacheSize  int
	StartFromBlock  uint64
}

// Source polls an origin chain for new escrow deposit logs and emits one
// Intent per log it has not already seen.
type Source struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	seen    *lru.Cache[string, struct{}]

	lastBlock uint64
}

// New constructs a logscan source. An LRU of recently-seen intent ids
// gives bounded-memory in-stream deduplication (§4.4): once a log is far
// enough behind the chain tip a duplicate is implausible, so the cache
// does not need to grow without bound.
func New(cfg Config) (*Source, error) {
	size := cfg.DedupCacheSize
	if size <= 0 {
		size = 4096
	}
	cache, err := lru.New[string, struct{}](size)
	if err != nil {
		return nil, solvererr.Wrap(solvererr.KindConfig, "logscan.New", err)
	}
	rps := cfg.RequestsPerSec
	if rps <= 0 {
		rps = 5
	}
	poll := cfg.PollInterval
	if poll <= 0 {
		poll = 5 * time.Second
	}
	cfg.PollInterval = poll
	return &Source{
		cfg:       cfg,
		client:    &http.Client{Timeout: 10 * time.Second},
		limiter:   rate.NewLimiter(rate.Limit(rps), int(rps*2)+1),
		seen:      cache,
		lastBlock: cfg.StartFromBlock,
	}, nil
}

func (s *Source) Name() string { return s.cfg.SourceName }

// Run polls for new escrow logs every PollInterval until ctx is cancelled.
func (s *Source) Run(ctx context.Context, sink chan<- intent.Intent) error {
	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := s.poll(ctx, sink); err != nil {
				return solvererr.Wrap(solvererr.KindTransient, "logscan.Run", err)
			}
		}
	}
}

type escrowLog struct {
	TxHash      string `json:"tx_hash"`
	BlockNumber uint64 `json:"block_number"`
	Data        json.RawMessage `json:"data"`
}

func (s *Source) poll(ctx context.Context, sink chan<- intent.Intent) error {
	if err := s.limiter.Wait(ctx); err != nil {
		return err
	}

	url := fmt.Sprintf("%s/logs?address=%s&from_block=%d", s.cfg.RPCURL, s.cfg.EscrowAddress, s.lastBlock)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var logs []escrowLog
	if err := json.Unmarshal(bytes.TrimSpace(raw), &logs); err != nil {
		return solvererr.Wrap(solvererr.KindSerialization, "logscan.poll", err)
	}

	for _, l := range logs {
		id := deterministicID(l.TxHash)
		if _, ok := s.seen.Get(id); ok {
			continue
		}
		s.seen.Add(id, struct{}{})
		if l.BlockNumber >= s.lastBlock {
			s.lastBlock = l.BlockNumber + 1
		}

		it := intent.Intent{
			ID:           id,
			Source:       s.cfg.SourceName,
			Standard:     s.cfg.Standard,
			Payload:      l.Data,
			DiscoveredAt: time.Now(),
		}
		select {
		case sink <- it:
		case <-ctx.Done():
			return nil
		}
	}
	return nil
}

// deterministicID derives a stable order/intent id from the origin-chain
// transaction hash, so replays of the same log always produce the same id
// (invariant I4) without the source needing to remember assigned ids
// across restarts.
func deterministicID(txHash string) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(txHash)).String()
}
