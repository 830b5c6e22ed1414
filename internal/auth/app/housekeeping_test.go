package app

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/aussiebroadwan/siteadmin/pkg/slogx"
	"github.com/stretchr/testify/require"
)

type fakePruner struct {
	mu      sync.Mutex
	cutoffs []time.Time
	err     error
	called  chan struct{}
}

func newFakePruner() *fakePruner {
	return &fakePruner{called: make(chan struct{}, 16)}
}

func (p *fakePruner) Prune(_ context.Context, cutoff time.Time) (int64, error) {
	p.mu.Lock()
	p.cutoffs = append(p.cutoffs, cutoff)
	p.mu.Unlock()
	select {
	case p.called <- struct{}{}:
	default:
	}
	return 3, p.err
}

func (p *fakePruner) calls() []time.Time {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]time.Time(nil), p.cutoffs...)
}

func TestHousekeeping_PrunesOnStart(t *testing.T) {
	p := newFakePruner()
	hk := NewHousekeepingService(p, slogx.Discard(), time.Hour, 24*time.Hour)

	before := time.Now().UTC()
	hk.Start()
	select {
	case <-p.called:
	case <-time.After(5 * time.Second):
		t.Fatal("prune was not called on start")
	}
	hk.Stop()

	calls := p.calls()
	require.Len(t, calls, 1)
	require.WithinDuration(t, before.Add(-24*time.Hour), calls[0], 5*time.Second)
}

func TestHousekeeping_RunsEveryInterval(t *testing.T) {
	p := newFakePruner()
	p.err = errors.New("boom")
	hk := NewHousekeepingService(p, slogx.Discard(), 10*time.Millisecond, time.Hour)

	hk.Start()
	for range 3 {
		select {
		case <-p.called:
		case <-time.After(5 * time.Second):
			t.Fatal("prune was not retried")
		}
	}
	hk.Stop()

	require.GreaterOrEqual(t, len(p.calls()), 3)
}

func TestHousekeeping_ZeroRetentionDisabled(t *testing.T) {
	p := newFakePruner()
	hk := NewHousekeepingService(p, slogx.Discard(), 5*time.Millisecond, 0)

	hk.Start()
	time.Sleep(30 * time.Millisecond)
	hk.Stop()

	require.Empty(t, p.calls())
}

func TestNewHousekeepingService_DefaultInterval(t *testing.T) {
	hk := NewHousekeepingService(newFakePruner(), slogx.Discard(), 0, time.Hour)
	require.Equal(t, time.Hour, hk.Interval)
}
