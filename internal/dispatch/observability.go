package dispatch

import (
	"context"
	"time"

	"github.com/wagiedev/cwmanager/internal/errors"
)

// Observation captures one completed dispatch.
type Observation struct {
	ID         string
	Kind       string
	Identifier string
	// Registration is the matched tool name or resource template,
	// empty when resolution failed.
	Registration string
	Started      time.Time
	Duration     time.Duration
	Success      bool
	ErrorKind    errors.Kind
}

// Observer receives dispatch observations.
// Implementations must be safe for concurrent use.
type Observer interface {
	ObserveDispatch(ctx context.Context, observation Observation)
}

type noopObserver struct{}

func (noopObserver) ObserveDispatch(context.Context, Observation) {}

// NoopObserver returns an observer that discards observations.
func NoopObserver() Observer {
	return noopObserver{}
}

// MultiObserver fans observations out to every observer in order.
func MultiObserver(observers ...Observer) Observer {
	filtered := make([]Observer, 0, len(observers))
	for _, o := range observers {
		if o != nil {
			filtered = append(filtered, o)
		}
	}

	switch len(filtered) {
	case 0:
		return NoopObserver()
	case 1:
		return filtered[0]
	}

	return multiObserver(filtered)
}

type multiObserver []Observer

func (m multiObserver) ObserveDispatch(ctx context.Context, observation Observation) {
	for _, o := range m {
		o.ObserveDispatch(ctx, observation)
	}
}
