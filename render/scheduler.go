// Package render owns the single frame loop that drives every
// per-frame update of the avatar in a fixed order.
package render

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/exp/slog"
)

// Stage is a slot in the per-frame update order. The order is a hard
// contract: later stages observe the poses and weights the earlier
// stages produced within the same frame.
type Stage int

const (
	StageMotion     Stage = iota // motion mixer update
	StageExtension               // custom extension hook
	StagePose                    // humanoid pose propagation
	StageLookAt                  // built-in look-at
	StageBlink                   // blink envelope
	StageExpression              // expression blend commit
	StagePhysics                 // secondary motion / physics pass
	numStages
)

func (s Stage) String() string {
	switch s {
	case StageMotion:
		return "motion"
	case StageExtension:
		return "extension"
	case StagePose:
		return "pose"
	case StageLookAt:
		return "lookAt"
	case StageBlink:
		return "blink"
	case StageExpression:
		return "expression"
	case StagePhysics:
		return "physics"
	}
	return "unknown"
}

// UpdateFunc is one per-frame update. delta is the frame time in
// seconds.
type UpdateFunc func(delta float64)

const DefaultFrameRate = 60.0

// Scheduler is a registry of per-frame callbacks plus a single driving
// tick source. Tick is callable synchronously in tests; Run drives
// Tick from a real clock.
type Scheduler struct {
	mu     sync.Mutex
	stages [numStages][]UpdateFunc

	frameInterval time.Duration

	logger *slog.Logger
}

func NewScheduler(frameRate float64) *Scheduler {
	if frameRate <= 0 {
		frameRate = DefaultFrameRate
	}
	s := &Scheduler{
		frameInterval: time.Duration(float64(time.Second) / frameRate),
	}
	s.logger = slog.With("renderScheduler", fmt.Sprintf("%p", s))
	return s
}

// Register adds fn at the given stage. Within one stage, callbacks run
// in registration order.
func (s *Scheduler) Register(stage Stage, fn UpdateFunc) {
	if stage < 0 || stage >= numStages {
		s.logger.Error("[renderScheduler] register on unknown stage", "stage", int(stage))
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stages[stage] = append(s.stages[stage], fn)
}

// Tick runs one frame: every registered callback, stage by stage.
func (s *Scheduler) Tick(delta float64) {
	s.mu.Lock()
	var frame [numStages][]UpdateFunc
	for i := range s.stages {
		frame[i] = s.stages[i]
	}
	s.mu.Unlock()

	for stage := Stage(0); stage < numStages; stage++ {
		for _, fn := range frame[stage] {
			fn(delta)
		}
	}
}

// Run drives Tick continuously until ctx is done. It is the only
// frame clock in the process.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.frameInterval)
	defer ticker.Stop()

	s.logger.Info("[renderScheduler] run", "frameInterval", s.frameInterval)

	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("[renderScheduler] stopped", "err", ctx.Err())
			return
		case now := <-ticker.C:
			s.Tick(now.Sub(last).Seconds())
			last = now
		}
	}
}
