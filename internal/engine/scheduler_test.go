package engine

import (
	"context"
	"testing"
	"time"

	"github.com/iceymoss/discovery-engine/internal/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingPass holds its Run open until released, standing in for a long
// batch job.
type blockingPass struct {
	name    string
	started chan struct{}
	release chan struct{}
}

func (p *blockingPass) Run(_ context.Context, _ map[string]any) (core.PassSummary, error) {
	close(p.started)
	<-p.release
	return core.PassSummary{Processed: 1}, nil
}

func (p *blockingPass) Identifier() string { return p.name }

func waitIdle(t *testing.T, s *Scheduler, name string) {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		if snap, ok := s.Stats.Get(name); ok && snap.Status == "Idle" {
			return
		}
		select {
		case <-deadline:
			t.Fatal("pass did not finish")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestManualRunRejectsOverlap(t *testing.T) {
	pass := &blockingPass{
		name:    "engine-blocking",
		started: make(chan struct{}),
		release: make(chan struct{}),
	}
	core.Register(pass.name, func() core.Pass { return pass })

	s := NewScheduler(nil)
	require.NoError(t, s.AddPass("0 0 4 * * *", pass.name, nil, "test"))

	require.NoError(t, s.ManualRun(pass.name))
	<-pass.started

	err := s.ManualRun(pass.name)
	require.Error(t, err, "a pass never overlaps itself")

	close(pass.release)
	waitIdle(t, s, pass.name)

	snap, ok := s.Stats.Get(pass.name)
	require.True(t, ok)
	assert.Equal(t, int64(1), snap.RunCount)
	assert.Equal(t, "Success", snap.LastResult)
	assert.Equal(t, 1, snap.LastSummary.Processed)
}

func TestManualRunUnknownPass(t *testing.T) {
	s := NewScheduler(nil)
	assert.Error(t, s.ManualRun("engine-missing"))
}

func TestStatManagerSnapshots(t *testing.T) {
	m := NewStatManager()
	m.Set("b", &PassStats{Name: "b", Status: "Idle"})
	m.Set("a", &PassStats{Name: "a", Status: "Idle"})

	// Mutating a returned snapshot must not leak back.
	snap, ok := m.Get("a")
	require.True(t, ok)
	snap.Status = "Running"
	stored, _ := m.Get("a")
	assert.Equal(t, "Idle", stored.Status)

	m.Update("a", func(st *PassStats) { st.RunCount = 3 })
	updated, _ := m.Get("a")
	assert.Equal(t, int64(3), updated.RunCount)

	all := m.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].Name)
	assert.Equal(t, "b", all[1].Name)

	_, ok = m.Get("missing")
	assert.False(t, ok)
}
