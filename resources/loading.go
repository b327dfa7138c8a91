package resources

import "sync"

// LoadingState is a snapshot of the current loading round.
type LoadingState struct {
	Loading bool
	Pending int
	Total   int
}

// LoadingManager counts in-flight loads. A round starts with the first load
// after idle and ends when nothing is pending.
type LoadingManager struct {
	mu        sync.Mutex
	state     LoadingState
	listeners []func(LoadingState)
}

func (m *LoadingManager) OnChange(fn func(LoadingState)) {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	m.mu.Unlock()
}

func (m *LoadingManager) State() LoadingState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Begin registers one load. Call done exactly once when it finishes.
func (m *LoadingManager) Begin() (done func()) {
	m.mu.Lock()
	if !m.state.Loading {
		m.state = LoadingState{Loading: true}
	}
	m.state.Pending++
	m.state.Total++
	m.notify()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			m.state.Pending--
			if m.state.Pending <= 0 {
				m.state = LoadingState{}
			}
			m.notify()
		})
	}
}

// notify is entered locked and unlocks before running listeners.
func (m *LoadingManager) notify() {
	st := m.state
	ls := make([]func(LoadingState), len(m.listeners))
	copy(ls, m.listeners)
	m.mu.Unlock()
	for _, fn := range ls {
		fn(st)
	}
}
