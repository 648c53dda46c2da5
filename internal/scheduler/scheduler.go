// Package scheduler runs the periodic invitation sweep: pending invitations
// whose window has elapsed are marked expired, and terminal invitations past
// the retention window are purged.
package scheduler

import (
	"context"
	"time"

	"github.com/docuspace/docuspace/internal/clock"
	"github.com/docuspace/docuspace/internal/config"
	invitationdomain "github.com/docuspace/docuspace/internal/invitation/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const sweepTimeout = time.Minute

type Scheduler struct {
	log         *zap.Logger
	clock       clock.Clock
	interval    time.Duration
	invitations invitationdomain.Service

	stop chan struct{}
	done chan struct{}
}

type Params struct {
	fx.In

	Log           *zap.Logger
	Clock         clock.Clock
	Cfg           config.Config
	InvitationSvc invitationdomain.Service
}

func New(p Params) *Scheduler {
	return &Scheduler{
		log:         p.Log.Named("scheduler"),
		clock:       p.Clock,
		interval:    p.Cfg.SweepInterval,
		invitations: p.InvitationSvc,
		stop:        make(chan struct{}),
		done:        make(chan struct{}),
	}
}

// Run loops the sweep until Stop is called. The first sweep happens one full
// interval after start so boot is not slowed by housekeeping.
func (s *Scheduler) Run() {
	defer close(s.done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.runSweep()
		case <-s.stop:
			return
		}
	}
}

func (s *Scheduler) Stop() {
	close(s.stop)
	<-s.done
}

func (s *Scheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), sweepTimeout)
	defer cancel()

	start := s.clock.Now()
	result, err := s.invitations.Sweep(ctx)
	if err != nil {
		s.log.Error("invitation sweep failed", zap.Error(err))
		return
	}

	s.log.Debug("invitation sweep finished",
		zap.Int64("expired", result.Expired),
		zap.Int64("purged", result.Purged),
		zap.Duration("took", s.clock.Now().Sub(start)),
	)
}

var Module = fx.Module("scheduler",
	fx.Provide(New),
	fx.Invoke(register),
)

func register(lc fx.Lifecycle, s *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go s.Run()
			return nil
		},
		OnStop: func(context.Context) error {
			s.Stop()
			return nil
		},
	})
}
