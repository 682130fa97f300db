package checkers

import (
	"context"
	"fmt"
)

// Pinger is anything that can check its own connectivity, such as a document
// store backend or the object storage manager.
type Pinger interface {
	Ping(ctx context.Context) error
}

// PingChecker adapts a Pinger to a health check.
type PingChecker struct {
	target Pinger
	name   string
}

// NewPingChecker creates a check named name that pings target.
func NewPingChecker(target Pinger, name string) *PingChecker {
	return &PingChecker{target: target, name: name}
}

// Name returns the name of this health check.
func (p *PingChecker) Name() string {
	return p.name
}

// Check pings the target.
func (p *PingChecker) Check(ctx context.Context) error {
	if err := p.target.Ping(ctx); err != nil {
		return fmt.Errorf("%s ping failed: %w", p.name, err)
	}
	return nil
}
