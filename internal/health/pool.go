package health

// Pool filters a route's configured backends through a Checker.
type Pool struct {
	backends []string
	checker  Checker
}

// NewPool creates a pool over backends. A nil checker treats every backend
// as healthy.
func NewPool(backends []string, checker Checker) *Pool {
	return &Pool{backends: append([]string(nil), backends...), checker: checker}
}

// Healthy returns the healthy backends. When none is healthy it fails open
// and returns all of them.
func (p *Pool) Healthy() []string {
	if p.checker == nil {
		return append([]string(nil), p.backends...)
	}
	healthy := make([]string, 0, len(p.backends))
	for _, b := range p.backends {
		if p.checker.IsHealthy(b) {
			healthy = append(healthy, b)
		}
	}
	if len(healthy) == 0 {
		return append([]string(nil), p.backends...)
	}
	return healthy
}

// Eligible returns a predicate admitting the backends that are healthy right
// now. It returns nil, admitting everything, when there is no checker or when
// no backend is healthy.
func (p *Pool) Eligible() func(addr string) bool {
	if p == nil || p.checker == nil {
		return nil
	}
	healthy := p.Healthy()
	if len(healthy) == len(p.backends) {
		return nil
	}
	set := make(map[string]struct{}, len(healthy))
	for _, b := range healthy {
		set[b] = struct{}{}
	}
	return func(addr string) bool {
		_, ok := set[addr]
		return ok
	}
}
