package module

import "sync"

// process wide registry for cross wiring ports while a binary composes its modules
var (
	mu  sync.RWMutex
	reg = map[string]any{}
)

// Register stores a port set under a module name, replacing any previous value
func Register(name string, ports any) {
	mu.Lock()
	reg[name] = ports
	mu.Unlock()
}

// RegisterModule stores m.Ports() under m.Name()
func RegisterModule(m Module) { Register(m.Name(), m.Ports()) }

// PortsAs fetches and type asserts a port set for name
func PortsAs[T any](name string) (T, bool) {
	mu.RLock()
	v, ok := reg[name]
	mu.RUnlock()
	if !ok {
		var zero T
		return zero, false
	}
	out, ok := v.(T)
	return out, ok
}

// Reset clears the registry for tests
func Reset() {
	mu.Lock()
	reg = map[string]any{}
	mu.Unlock()
}
