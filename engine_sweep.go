package speakauth

import (
	"context"
	"log"
	"strconv"
	"time"
)

// SweepExpired describes the sweepexpired operation and its observable behavior.
//
// SweepExpired may return an error when input validation, dependency calls, or security checks fail.
// SweepExpired does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// Redis TTLs already expire session and challenge payloads on their own;
// the sweep reconciles the per-user session indexes and drops challenge
// records whose expiry passed before their TTL fired.
func (e *Engine) SweepExpired(ctx context.Context) (int, error) {
	if e == nil || e.sessionStore == nil {
		return 0, ErrEngineNotReady
	}

	removed := 0

	userIDs, err := e.sessionStore.IndexedUserIDs(ctx)
	if err != nil {
		return removed, err
	}
	for _, userID := range userIDs {
		n, err := e.sessionStore.SweepUserIndex(ctx, userID)
		if err != nil {
			return removed, err
		}
		removed += n
	}

	// TTL-expired keys never decrement the global counter, so the sweep
	// resyncs it from a SCAN-based estimate.
	if est, err := e.sessionStore.EstimateActiveSessions(ctx); err == nil {
		if err := e.sessionStore.SetSessionCount(ctx, est); err != nil {
			log.Print("speakauth: session count resync failed")
		}
	}

	if e.resetStore != nil {
		n, err := e.resetStore.SweepExpired(ctx)
		if err != nil {
			return removed, err
		}
		removed += n
	}
	if e.verificationStore != nil {
		n, err := e.verificationStore.SweepExpired(ctx)
		if err != nil {
			return removed, err
		}
		removed += n
	}

	if removed > 0 && e.metrics != nil {
		e.metrics.Add(MetricSweepRemoved, uint64(removed))
	}
	e.emitAudit(ctx, auditEventSweepCompleted, true, "", "", nil, func() map[string]string {
		return map[string]string{
			"removed": strconv.Itoa(removed),
		}
	})

	return removed, nil
}

// StartSweeper describes the startsweeper operation and its observable behavior.
//
// StartSweeper may return an error when input validation, dependency calls, or security checks fail.
// StartSweeper does not mutate shared global state and can be used concurrently when the receiver and dependencies are concurrently safe.
//
// The sweeper stops when ctx is cancelled. An Interval of zero disables
// it entirely.
func (e *Engine) StartSweeper(ctx context.Context) {
	if e == nil || e.config.Sweep.Interval <= 0 {
		return
	}

	go func() {
		ticker := time.NewTicker(e.config.Sweep.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if _, err := e.SweepExpired(ctx); err != nil {
					log.Print("speakauth: background sweep failed")
				}
			}
		}
	}()
}
