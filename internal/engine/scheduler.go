package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/iceymoss/discovery-engine/internal/core"
	zLog "github.com/iceymoss/discovery-engine/pkg/logger"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// PassRun is the journal record for one completed pass execution.
type PassRun struct {
	Pass       string           `bson:"pass" json:"pass"`
	Source     string           `bson:"source" json:"source"`
	StartedAt  time.Time        `bson:"started_at" json:"started_at"`
	FinishedAt time.Time        `bson:"finished_at" json:"finished_at"`
	Summary    core.PassSummary `bson:"summary" json:"summary"`
	Error      string           `bson:"error,omitempty" json:"error,omitempty"`
}

// Recorder persists pass runs for operators. Implementations must degrade
// silently, a broken journal never fails a pass.
type Recorder interface {
	Record(ctx context.Context, run PassRun)
}

type Scheduler struct {
	cron       *cron.Cron
	Stats      *StatManager
	recorder   Recorder
	registered map[string]struct {
		pass   core.Pass
		params map[string]any
	}

	runMu   sync.Mutex
	running map[string]bool
}

func NewScheduler(recorder Recorder) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		Stats:    NewStatManager(),
		recorder: recorder,
		registered: make(map[string]struct {
			pass   core.Pass
			params map[string]any
		}),
		running: make(map[string]bool),
	}
}

// AddPass schedules a registered pass under a cron expression.
func (s *Scheduler) AddPass(cronExpr, passName string, params map[string]any, source string) error {
	passInstance, err := core.GetPass(passName)
	if err != nil {
		return err
	}

	s.Stats.Set(passName, &PassStats{
		Name:       passName,
		CronExpr:   cronExpr,
		Status:     "Idle",
		LastResult: "Pending",
		Source:     source,
	})

	s.registered[passName] = struct {
		pass   core.Pass
		params map[string]any
	}{passInstance, params}

	wrapper := func() {
		if !s.tryAcquire(passName) {
			zLog.Warn("pass still running, skipping scheduled run", zap.String("pass", passName))
			return
		}
		defer s.release(passName)
		s.runPassWithStats(passName, passInstance, params)
	}

	entryID, err := s.cron.AddFunc(cronExpr, wrapper)
	if err == nil {
		next := s.cron.Entry(entryID).Next
		s.Stats.Update(passName, func(st *PassStats) {
			st.rawNext = next
			st.NextRunTime = next.Format("2006-01-02 15:04:05")
		})
	}
	return err
}

// tryAcquire marks the pass as running, refusing when a run is in flight.
func (s *Scheduler) tryAcquire(name string) bool {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	if s.running[name] {
		return false
	}
	s.running[name] = true
	return true
}

func (s *Scheduler) release(name string) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	delete(s.running, name)
}

// runPassWithStats executes one pass and records the outcome. Callers hold
// the pass's run slot.
func (s *Scheduler) runPassWithStats(name string, pass core.Pass, params map[string]any) {
	s.Stats.Update(name, func(st *PassStats) {
		st.Status = "Running"
		st.LastRunTime = time.Now().Format("2006-01-02 15:04:05")
		st.RunCount++
	})

	zLog.Info("pass starting", zap.String("pass", name))

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Minute)
	defer cancel()

	started := time.Now()
	summary, err := pass.Run(ctx, params)
	finished := time.Now()

	s.Stats.Update(name, func(st *PassStats) {
		st.LastSummary = summary
		if err != nil {
			st.LastResult = fmt.Sprintf("Error: %v", err)
			st.Status = "Error"
		} else {
			st.LastResult = "Success"
			st.Status = "Idle"
		}
	})

	if err != nil {
		zLog.Error("pass failed", zap.String("pass", name), zap.Error(err),
			zap.Int("processed", summary.Processed), zap.Int("skipped", summary.Skipped),
			zap.Int("errored", summary.Errored))
	} else {
		zLog.Info("pass finished", zap.String("pass", name),
			zap.Int("processed", summary.Processed), zap.Int("skipped", summary.Skipped),
			zap.Int("errored", summary.Errored))
	}

	if s.recorder != nil {
		snap, _ := s.Stats.Get(name)
		run := PassRun{
			Pass:       name,
			Source:     snap.Source,
			StartedAt:  started,
			FinishedAt: finished,
			Summary:    summary,
		}
		if err != nil {
			run.Error = err.Error()
		}
		s.recorder.Record(ctx, run)
	}
}

// ManualRun triggers a scheduled pass outside its cron slot. A pass never
// runs concurrently with itself.
func (s *Scheduler) ManualRun(passName string) error {
	reg, ok := s.registered[passName]
	if !ok {
		return fmt.Errorf("pass not found")
	}
	if !s.tryAcquire(passName) {
		return fmt.Errorf("pass %s is already running", passName)
	}
	go func() {
		defer s.release(passName)
		s.runPassWithStats(passName, reg.pass, reg.params)
	}()
	return nil
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

func (s *Scheduler) Stop() {
	s.cron.Stop()
}
