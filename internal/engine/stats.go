package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/iceymoss/discovery-engine/internal/core"
)

// PassStats is the runtime state of one scheduled pass.
type PassStats struct {
	Name        string           `json:"name"`
	CronExpr    string           `json:"cron_expr"`
	Status      string           `json:"status"` // Idle, Running, Error
	LastRunTime string           `json:"last_run"`
	NextRunTime string           `json:"next_run"`
	LastResult  string           `json:"last_result"`
	LastSummary core.PassSummary `json:"last_summary"`
	RunCount    int64            `json:"run_count"`
	Source      string           `json:"source"` // SYSTEM, YAML, API
	rawNext     time.Time
}

// StatManager guards pass state behind one lock. Readers get copies and the
// scheduler mutates through Update, so the HTTP handlers never observe a
// half-written stat.
type StatManager struct {
	stats map[string]*PassStats
	mu    sync.RWMutex
}

func NewStatManager() *StatManager {
	return &StatManager{
		stats: make(map[string]*PassStats),
	}
}

func (m *StatManager) Set(name string, stat *PassStats) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stats[name] = stat
}

// Update applies fn to the named stat under the lock.
func (m *StatManager) Update(name string, fn func(*PassStats)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s, ok := m.stats[name]; ok {
		fn(s)
	}
}

// Get returns a snapshot of one stat.
func (m *StatManager) Get(name string) (PassStats, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.stats[name]
	if !ok {
		return PassStats{}, false
	}
	return *s, true
}

// GetAll returns snapshots of every stat, sorted by pass name.
func (m *StatManager) GetAll() []PassStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := make([]PassStats, 0, len(m.stats))
	for _, s := range m.stats {
		list = append(list, *s)
	}
	sort.Slice(list, func(i, j int) bool {
		return list[i].Name < list[j].Name
	})
	return list
}
