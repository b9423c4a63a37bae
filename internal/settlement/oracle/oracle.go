// Package oracle implements the Settlement standard that polls a REST
// attestation oracle, grounded on the per-id poll-with-backoff idiom
// shared by this codebase's other long-running pollers: a
// nextAttempt map[string]time.Time guarding when an id is next eligible,
// with shouldAttempt/scheduleNext/clearSchedule helpers around it.
package oracle

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/tidwall/gjson"

	"github.com/r3e-network/intent-solver/internal/domain/chain"
	"github.com/r3e-network/intent-solver/internal/domain/order"
	"github.com/r3e-network/intent-solver/internal/solvererr"
)

const StandardName = "oracle"

// Config configures the oracle settlement standard
// ([settlement.implementations.<standard>]).
type Config struct {
	Endpoint        string
	PollInterval    time.Duration
	InitialBackoff  time.Duration
	MaxBackoff      time.Duration
	DisputeWindow   time.Duration
}

// Standard polls a REST oracle for fill attestations.
type Standard struct {
	cfg    Config
	client *http.Client

	mu          sync.Mutex
	nextAttempt map[string]time.Time
	backoff     map[string]time.Duration
}

func New(cfg Config) *Standard {
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 5 * time.Second
	}
	if cfg.InitialBackoff <= 0 {
		cfg.InitialBackoff = cfg.PollInterval
	}
	if cfg.MaxBackoff <= 0 {
		cfg.MaxBackoff = time.Minute
	}
	return &Standard{
		cfg:         cfg,
		client:      &http.Client{Timeout: 10 * time.Second},
		nextAttempt: make(map[string]time.Time),
		backoff:     make(map[string]time.Duration),
	}
}

func (s *Standard) Name() string { return StandardName }

// shouldAttempt reports whether enough time has passed since the last
// attempt for this order id to poll again.
func (s *Standard) shouldAttempt(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	next, ok := s.nextAttempt[id]
	return !ok || !time.Now().Before(next)
}

// scheduleNext backs off the next attempt for id exponentially, capped at
// MaxBackoff — not attested yet is the common case, so this keeps a
// not-yet-attested order from being polled on every tick indefinitely.
func (s *Standard) scheduleNext(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur := s.backoff[id]
	if cur <= 0 {
		cur = s.cfg.InitialBackoff
	} else {
		cur *= 2
		if cur > s.cfg.MaxBackoff {
			cur = s.cfg.MaxBackoff
		}
	}
	s.backoff[id] = cur
	s.nextAttempt[id] = time.Now().Add(cur)
}

// clearSchedule drops the backoff state for id once it is no longer
// needed (attested, or the monitor task has exited).
func (s *Standard) clearSchedule(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.nextAttempt, id)
	delete(s.backoff, id)
}

func (s *Standard) queryAttestation(ctx context.Context, fillTxHash chain.TransactionHash) (gjson.Result, error) {
	url := fmt.Sprintf("%s?fill_tx_hash=%s", s.cfg.Endpoint, fillTxHash.String())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return gjson.Result{}, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return gjson.Result{}, err
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return gjson.Result{}, err
	}
	if resp.StatusCode == http.StatusNotFound {
		return gjson.Result{}, nil // not attested yet
	}
	if resp.StatusCode >= 500 {
		return gjson.Result{}, fmt.Errorf("oracle status %d", resp.StatusCode)
	}
	return gjson.ParseBytes(raw), nil
}

// MonitorFill polls the oracle until it reports the fill attested, then
// waits out the dispute window before returning the proof. Cancellable
// via ctx, per §4.6.
func (s *Standard) MonitorFill(ctx context.Context, ord *order.Order, fillTxHash chain.TransactionHash) (*chain.FillProof, error) {
	defer s.clearSchedule(ord.ID)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, solvererr.Wrap(solvererr.KindCancellation, "oracle.MonitorFill", ctx.Err())
		case <-ticker.C:
			if !s.shouldAttempt(ord.ID) {
				continue
			}
			result, err := s.queryAttestation(ctx, fillTxHash)
			if err != nil {
				return nil, solvererr.Wrap(solvererr.KindTransient, "oracle.MonitorFill", err)
			}
			if !result.Get("attested").Bool() {
				s.scheduleNext(ord.ID)
				continue
			}

			attestedAt := time.Unix(result.Get("attested_at_unix").Int(), 0).UTC()
			blockNumber := uint64(result.Get("block_number").Int())
			attestation := []byte(result.Get("attestation").String())

			if wait := time.Until(attestedAt.Add(s.cfg.DisputeWindow)); wait > 0 {
				select {
				case <-time.After(wait):
				case <-ctx.Done():
					return nil, solvererr.Wrap(solvererr.KindCancellation, "oracle.MonitorFill", ctx.Err())
				}
			}

			return &chain.FillProof{
				FillTxHash:  fillTxHash,
				BlockNumber: blockNumber,
				Attestation: attestation,
				AttestedAt:  attestedAt,
			}, nil
		}
	}
}

// CanClaim is a side-effect-free re-check that the dispute window has
// elapsed since attestation, called just before claim submission (§4.6),
// including after a restart when MonitorFill is not re-run.
func (s *Standard) CanClaim(_ context.Context, _ *order.Order, proof *chain.FillProof) (bool, error) {
	if proof == nil {
		return false, nil
	}
	return !time.Now().Before(proof.AttestedAt.Add(s.cfg.DisputeWindow)), nil
}
