package analyzer

import "sync"

// Listener is notified after configuration changes. BandsChanged fires after
// any change that rebuilt the band topology, ParametersChanged after every
// change. Callbacks run on the goroutine that called the setter, after all
// engine locks are released, so they may query the engine.
type Listener interface {
	ParametersChanged()
	BandsChanged()
}

// ListenerFuncs adapts plain functions to Listener. Nil fields are ignored.
type ListenerFuncs struct {
	OnParametersChanged func()
	OnBandsChanged      func()
}

func (f ListenerFuncs) ParametersChanged() {
	if f.OnParametersChanged != nil {
		f.OnParametersChanged()
	}
}

func (f ListenerFuncs) BandsChanged() {
	if f.OnBandsChanged != nil {
		f.OnBandsChanged()
	}
}

type listenerEntry struct {
	id int
	l  Listener
}

type listenerSet struct {
	mu      sync.Mutex
	nextID  int
	entries []listenerEntry
}

func (s *listenerSet) add(l Listener) func() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.entries = append(s.entries, listenerEntry{id: id, l: l})

	var once sync.Once
	return func() {
		once.Do(func() { s.remove(id) })
	}
}

func (s *listenerSet) remove(id int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, e := range s.entries {
		if e.id == id {
			s.entries = append(s.entries[:i:i], s.entries[i+1:]...)
			return
		}
	}
}

func (s *listenerSet) snapshot() []listenerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.entries
}

func (s *listenerSet) parametersChanged() {
	for _, e := range s.snapshot() {
		e.l.ParametersChanged()
	}
}

func (s *listenerSet) bandsChanged() {
	for _, e := range s.snapshot() {
		e.l.BandsChanged()
	}
}

// AddListener registers l and returns a function that unregisters it.
func (e *Engine) AddListener(l Listener) (remove func()) {
	if l == nil {
		return func() {}
	}
	return e.listeners.add(l)
}
