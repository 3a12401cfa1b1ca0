package app

import (
	"context"
	"sync"

	"quizquest/internal/domain"
)

// DashboardFeed keeps one viewer's dashboard current. Each Refresh supersedes
// the previous one: its fetch is canceled and only the latest request may
// publish, so a slow response for a previous user is never shown.
type DashboardFeed struct {
	history *HistoryService
	updates chan domain.Dashboard

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

func NewDashboardFeed(history *HistoryService) *DashboardFeed {
	return &DashboardFeed{
		history: history,
		updates: make(chan domain.Dashboard, 1),
	}
}

// Updates delivers published dashboards. Only the newest pending one is kept.
func (f *DashboardFeed) Updates() <-chan domain.Dashboard {
	return f.updates
}

// Refresh starts loading the dashboard for userID.
func (f *DashboardFeed) Refresh(ctx context.Context, userID string) {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	if f.cancel != nil {
		f.cancel()
	}
	f.gen++
	gen := f.gen
	fetchCtx, cancel := context.WithCancel(ctx)
	f.cancel = cancel
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		defer cancel()
		dash, err := f.history.fetch(fetchCtx, userID)
		if fetchCtx.Err() != nil {
			return
		}
		if err != nil {
			dash = emptyDashboard(userID)
		}
		f.publish(gen, dash)
	}()
}

func (f *DashboardFeed) publish(gen uint64, dash domain.Dashboard) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed || gen != f.gen {
		return
	}
	select {
	case f.updates <- dash:
	default:
		select {
		case <-f.updates:
		default:
		}
		f.updates <- dash
	}
}

// Close cancels any in-flight fetch and closes Updates.
func (f *DashboardFeed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	if f.cancel != nil {
		f.cancel()
	}
	f.mu.Unlock()
	f.wg.Wait()
	close(f.updates)
}
