// Package cron is a Discovery source for intent feeds that are only
// queryable on a fixed cadence (e.g. a batch API that publishes a new
// intent list every few minutes), scheduled with github.com/robfig/cron/v3.
package cron

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/google/uuid"

	"github.com/r3e-network/intent-solver/internal/domain/intent"
	"github.com/r3e-network/intent-solver/internal/solvererr"
)

// Config configures a cron-scheduled source.
type Config struct {
	SourceName string
	FeedURL    string
	Standard   string
	// Schedule is a standard five-field cron expression, e.g. "*/5 * * * *".
	Schedule string
}

// Source fetches a batch intent feed on a cron schedule and emits every
// entry it has not emitted before.
type Source struct {
	cfg    Config
	client *http.Client
	seen   map[string]struct{}
}

// New constructs a cron source. The schedule expression is validated
// immediately so a typo surfaces at startup rather than at the first tick.
func New(cfg Config) (*Source, error) {
	if _, err := cron.ParseStandard(cfg.Schedule); err != nil {
		return nil, solvererr.Wrap(solvererr.KindConfig, "cron.New", err)
	}
	return &Source{
		cfg:    cfg,
		client: &http.Client{Timeout: 15 * time.Second},
		seen:   make(map[string]struct{}),
	}, nil
}

func (s *Source) Name() string { return s.cfg.SourceName }

// Run schedules fetch on the configured cadence until ctx is cancelled.
// Fetch errors are reported to the caller so the wrapping task can apply
// reconnect backoff (§4.4); the cron scheduler itself is stopped and
// recreated on each reconnect attempt.
func (s *Source) Run(ctx context.Context, sink chan<- intent.Intent) error {
	errCh := make(chan error, 1)
	c := cron.New()
	_, err := c.AddFunc(s.cfg.Schedule, func() {
		if err := s.fetch(ctx, sink); err != nil {
			select {
			case errCh <- err:
			default:
			}
		}
	})
	if err != nil {
		return solvererr.Wrap(solvererr.KindConfig, "cron.Run", err)
	}

	c.Start()
	defer c.Stop()

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

type feedEntry struct {
	EntryID string          `json:"entry_id"`
	Data    json.RawMessage `json:"data"`
}

func (s *Source) fetch(ctx context.Context, sink chan<- intent.Intent) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.cfg.FeedURL, nil)
	if err != nil {
		return err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("cron feed %s: status %d", s.cfg.SourceName, resp.StatusCode)
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	var entries []feedEntry
	if err := json.Unmarshal(bytes.TrimSpace(raw), &entries); err != nil {
		return solvererr.Wrap(solvererr.KindSerialization, "cron.fetch", err)
	}

	for _, e := range entries {
		id := uuid.NewSHA1(uuid.NameSpaceOID, []byte(e.EntryID)).String()
		if _, ok := s.seen[id]; ok {
			continue
		}
		s.seen[id] = struct{}{}

		it := intent.Intent{
			ID:           id,
			Source:       s.cfg.SourceName,
			Standard:     s.cfg.Standard,
			Payload:      e.Data,
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
