/**
 * Copyright 2025-present Coinbase Global, Inc.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *  http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package reconciler

import (
	"context"
	"fmt"
	"time"

	"group-shipment-go/internal/models"
	"group-shipment-go/internal/notify"

	"go.uber.org/zap"
)

// GroupSource lists the groups the sweeps act on.
type GroupSource interface {
	ListExpiredOpenGroups(ctx context.Context, now time.Time, limit int) ([]models.Group, error)
	ListGroupsClosingSoon(ctx context.Context, now, until time.Time, maxSlots int) ([]models.Group, error)
	ListGroupParcels(ctx context.Context, groupId string) ([]models.Parcel, error)
}

// Finalizer applies the finalization routine to one group.
type Finalizer interface {
	Finalize(ctx context.Context, g *models.Group, earlyClose bool) (*models.Group, error)
}

// EarningClearer clears earnings whose hold window has elapsed.
type EarningClearer interface {
	ListDue(ctx context.Context, limit int) ([]models.Earning, error)
	Clear(ctx context.Context, earningId string) (*models.Earning, error)
}

// OnceGuard reports true only the first time a key is claimed.
type OnceGuard interface {
	Once(ctx context.Context, key string, ttl time.Duration) (bool, error)
}

// Config contains configuration for Reconciler
type Config struct {
	Groups            GroupSource
	Finalizer         Finalizer
	Earnings          EarningClearer
	Guard             OnceGuard
	Notifier          notify.Notifier
	Policy            models.Policy
	DeadlineInterval  time.Duration
	UrgencyInterval   time.Duration
	ClearanceInterval time.Duration
	BatchSize         int
}

// Reconciler runs the deadline, urgency and clearance sweeps. Every decision
// is derived from persisted state, so several instances may run it at once.
type Reconciler struct {
	groups    GroupSource
	finalizer Finalizer
	earnings  EarningClearer
	guard     OnceGuard
	notifier  notify.Notifier
	policy    models.Policy

	deadlineInterval  time.Duration
	urgencyInterval   time.Duration
	clearanceInterval time.Duration
	batchSize         int

	now      func() time.Time
	stopChan chan struct{}
	doneChan chan struct{}
}

func New(cfg Config) (*Reconciler, error) {
	if cfg.Groups == nil || cfg.Finalizer == nil || cfg.Earnings == nil || cfg.Guard == nil {
		return nil, fmt.Errorf("groups, finalizer, earnings and guard are required")
	}
	if cfg.DeadlineInterval <= 0 || cfg.UrgencyInterval <= 0 || cfg.ClearanceInterval <= 0 {
		return nil, fmt.Errorf("sweep intervals must be positive")
	}
	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = 100
	}

	return &Reconciler{
		groups:            cfg.Groups,
		finalizer:         cfg.Finalizer,
		earnings:          cfg.Earnings,
		guard:             cfg.Guard,
		notifier:          cfg.Notifier,
		policy:            cfg.Policy,
		deadlineInterval:  cfg.DeadlineInterval,
		urgencyInterval:   cfg.UrgencyInterval,
		clearanceInterval: cfg.ClearanceInterval,
		batchSize:         batchSize,
		now:               time.Now,
		stopChan:          make(chan struct{}),
		doneChan:          make(chan struct{}),
	}, nil
}

// Start launches the three sweep loops
func (r *Reconciler) Start(ctx context.Context) {
	zap.L().Info("Starting reconciler",
		zap.Duration("deadline_interval", r.deadlineInterval),
		zap.Duration("urgency_interval", r.urgencyInterval),
		zap.Duration("clearance_interval", r.clearanceInterval))

	loops := []struct {
		interval time.Duration
		sweep    func(context.Context) int
	}{
		{r.deadlineInterval, r.SweepDeadlines},
		{r.urgencyInterval, r.SweepUrgency},
		{r.clearanceInterval, r.SweepClearance},
	}

	done := make(chan struct{}, len(loops))
	for _, l := range loops {
		go func(interval time.Duration, sweep func(context.Context) int) {
			defer func() { done <- struct{}{} }()
			r.loop(ctx, interval, sweep)
		}(l.interval, l.sweep)
	}

	go func() {
		for range loops {
			<-done
		}
		close(r.doneChan)
	}()
}

// Stop gracefully stops the sweeps
func (r *Reconciler) Stop() {
	zap.L().Info("Stopping reconciler")
	close(r.stopChan)
	<-r.doneChan
	zap.L().Info("Reconciler stopped")
}

func (r *Reconciler) loop(ctx context.Context, interval time.Duration, sweep func(context.Context) int) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	sweep(ctx)

	for {
		select {
		case <-ticker.C:
			sweep(ctx)
		case <-r.stopChan:
			return
		case <-ctx.Done():
			return
		}
	}
}

// SweepDeadlines finalizes every OPEN group whose deadline has passed and
// returns how many were finalized. A failing group is logged and skipped.
func (r *Reconciler) SweepDeadlines(ctx context.Context) int {
	now := r.now().UTC()
	expired, err := r.groups.ListExpiredOpenGroups(ctx, now, r.batchSize)
	if err != nil {
		zap.L().Error("Failed to list expired groups", zap.Error(err))
		return 0
	}
	if len(expired) == 0 {
		return 0
	}

	finalized := 0
	for i := range expired {
		g := &expired[i]
		result, err := r.finalizer.Finalize(ctx, g, false)
		if err != nil {
			zap.L().Error("Failed to finalize group",
				zap.String("group_id", g.Id),
				zap.Int("current_members", g.CurrentMembers),
				zap.Int("target_members", g.TargetMembers),
				zap.Error(err))
			continue
		}
		finalized++
		zap.L().Info("Group reached deadline",
			zap.String("group_id", result.Id),
			zap.String("status", string(result.Status)))
	}

	zap.L().Info("Deadline sweep complete",
		zap.Int("expired", len(expired)),
		zap.Int("finalized", finalized))
	return finalized
}

// SweepUrgency notifies members of OPEN groups that have fewer than
// UrgencySlots free slots and less than UrgencyWindow left. Each group is
// announced once. Group state is never changed.
func (r *Reconciler) SweepUrgency(ctx context.Context) int {
	if r.policy.UrgencySlots <= 1 {
		return 0
	}

	now := r.now().UTC()
	closing, err := r.groups.ListGroupsClosingSoon(ctx, now, now.Add(r.policy.UrgencyWindow), r.policy.UrgencySlots-1)
	if err != nil {
		zap.L().Error("Failed to list groups closing soon", zap.Error(err))
		return 0
	}

	sent := 0
	for i := range closing {
		g := &closing[i]
		first, err := r.guard.Once(ctx, "urgency:"+g.Id, g.Deadline.Sub(now)+time.Hour)
		if err != nil {
			zap.L().Error("Failed to claim urgency notification", zap.String("group_id", g.Id), zap.Error(err))
			continue
		}
		if !first {
			continue
		}

		members, err := r.groups.ListGroupParcels(ctx, g.Id)
		if err != nil {
			zap.L().Error("Failed to list group members", zap.String("group_id", g.Id), zap.Error(err))
			continue
		}

		message := fmt.Sprintf("Group %s needs %d more members before %s.",
			g.Code, g.SlotsLeft(), g.Deadline.Format(time.Kitchen))
		for _, p := range members {
			notify.Send(ctx, r.notifier, notify.Event{
				Type:       notify.EventGroupUrgency,
				GroupId:    g.Id,
				ParcelId:   p.Id,
				CustomerId: p.CustomerId,
				Phone:      p.CustomerPhone,
				Message:    message,
			})
		}
		sent++
	}
	return sent
}

// SweepClearance clears every PENDING earning past its hold window.
func (r *Reconciler) SweepClearance(ctx context.Context) int {
	due, err := r.earnings.ListDue(ctx, r.batchSize)
	if err != nil {
		zap.L().Error("Failed to list clearable earnings", zap.Error(err))
		return 0
	}

	cleared := 0
	for _, e := range due {
		if _, err := r.earnings.Clear(ctx, e.Id); err != nil {
			zap.L().Error("Failed to clear earning",
				zap.String("earning_id", e.Id),
				zap.String("parcel_id", e.ParcelId),
				zap.Error(err))
			continue
		}
		cleared++
	}

	if len(due) > 0 {
		zap.L().Info("Clearance sweep complete",
			zap.Int("due", len(due)),
			zap.Int("cleared", cleared))
	}
	return cleared
}
