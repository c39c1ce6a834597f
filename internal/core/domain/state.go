package domain

// State is the persisted document: every monitored address plus the method cache.
type State struct {
	Addresses   []MonitoredAddress `json:"addresses"`
	MethodCache MethodCache        `json:"methodCache"`
}

// MethodCache maps method selectors to the hash of the last transaction
// that confirmed their classification.
type MethodCache struct {
	Include map[string]string `json:"include"`
	Exclude map[string]string `json:"exclude"`
}

// NewState returns the empty default document.
func NewState() *State {
	return &State{
		Addresses: []MonitoredAddress{},
		MethodCache: MethodCache{
			Include: make(map[string]string),
			Exclude: make(map[string]string),
		},
	}
}

// Normalize fills nil collections so a decoded partial document behaves
// like the default one.
func (s *State) Normalize() *State {
	if s.Addresses == nil {
		s.Addresses = []MonitoredAddress{}
	}
	if s.MethodCache.Include == nil {
		s.MethodCache.Include = make(map[string]string)
	}
	if s.MethodCache.Exclude == nil {
		s.MethodCache.Exclude = make(map[string]string)
	}
	return s
}
