package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

const shutdownTimeout = 30 * time.Second

// Component is a long-running part of the process.
type Component interface {
	Start() error
	Stop(ctx context.Context) error
}

type component struct {
	name    string
	c       Component
	started bool
}

// lifecycle starts components in order and stops them in reverse.
type lifecycle struct {
	components []component
	logger     *slog.Logger
}

func (l *lifecycle) add(name string, c Component) {
	l.components = append(l.components, component{name: name, c: c})
}

// start starts every component. If one fails, those already started are
// stopped in reverse order.
func (l *lifecycle) start() error {
	for i := range l.components {
		ci := &l.components[i]
		l.logger.Info("app: starting component", "component", ci.name)
		if err := ci.c.Start(); err != nil {
			l.logger.Error("app: component start failed", "component", ci.name, "error", err)
			l.stopFrom(i - 1)
			return fmt.Errorf("app: starting %s: %w", ci.name, err)
		}
		ci.started = true
	}
	return nil
}

func (l *lifecycle) stop() {
	l.stopFrom(len(l.components) - 1)
}

func (l *lifecycle) stopFrom(from int) {
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	for i := from; i >= 0; i-- {
		ci := &l.components[i]
		if !ci.started {
			continue
		}
		l.logger.Info("app: stopping component", "component", ci.name)
		if err := ci.c.Stop(ctx); err != nil {
			l.logger.Error("app: component stop error", "component", ci.name, "error", err)
		}
		ci.started = false
	}
}
