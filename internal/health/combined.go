package health

// Combined is healthy only when every checker agrees, so active probes
// catch idle failures while passive windows catch failures under load.
type Combined []Checker

// IsHealthy implements Checker.
func (c Combined) IsHealthy(backend string) bool {
	for _, ch := range c {
		if ch != nil && !ch.IsHealthy(backend) {
			return false
		}
	}
	return true
}
