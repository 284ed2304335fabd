package core

import (
	"fmt"
	"sync"
)

var (
	registry = make(map[string]PassCreator)
	mu       sync.RWMutex
)

// Register adds a pass constructor under its name. The composition root
// registers every pass at startup, the scheduler looks them up by the
// configured name.
func Register(name string, creator PassCreator) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = creator
}

func GetPass(name string) (Pass, error) {
	mu.RLock()
	defer mu.RUnlock()
	creator, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("pass implementation '%s' not found", name)
	}
	return creator(), nil
}

// Registered returns the names of all registered passes.
func Registered() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	return names
}
