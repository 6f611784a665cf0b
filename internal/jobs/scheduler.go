// Package jobs owns the scheduled trigger of the analysis pipeline. The
// daily run fires shortly after noon (fixed offset) and rebuilds the
// noon-to-noon window that just closed.
package jobs

import (
	"context"
	"fmt"

	"github.com/robfig/cron"

	"github.com/yungbote/habitlens-backend/internal/logger"
	"github.com/yungbote/habitlens-backend/internal/services"
)

type Scheduler struct {
	c        *cron.Cron
	log      *logger.Logger
	analysis services.AnalysisService
	spec     string
}

func NewScheduler(analysis services.AnalysisService, spec string, baseLog *logger.Logger) *Scheduler {
	return &Scheduler{
		log:      baseLog.With("component", "Scheduler"),
		analysis: analysis,
		spec:     spec,
	}
}

func (s *Scheduler) Start() error {
	if s.c != nil {
		return nil
	}
	c := cron.New()
	if err := c.AddFunc(s.spec, s.runOnce); err != nil {
		return fmt.Errorf("invalid cron spec %q: %w", s.spec, err)
	}
	c.Start()
	s.c = c
	s.log.Info("Scheduler started", "spec", s.spec)
	return nil
}

// runOnce logs and swallows pipeline errors: a failed run loses that run's
// remaining work but never takes the process down.
func (s *Scheduler) runOnce() {
	s.log.Info("Daily analysis run starting")
	if err := s.analysis.RunDaily(context.Background()); err != nil {
		s.log.Error("Daily analysis run failed", "error", err)
		return
	}
	s.log.Info("Daily analysis run finished")
}

func (s *Scheduler) Stop() {
	if s.c == nil {
		return
	}
	s.c.Stop()
	s.c = nil
	s.log.Info("Scheduler stopped")
}
