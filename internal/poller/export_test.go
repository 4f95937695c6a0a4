package poller

import "context"

// RunCycle exposes a single poll cycle to tests.
func (p *Poller) RunCycle(ctx context.Context) { p.runCycle(ctx) }
