package collector

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
)

// ErrNoCollector is the panic value of [Report] in strict mode when the
// context carries no collector.
var ErrNoCollector = errors.New("collector: no collector in context")

type ctxKey struct{}

// NewContext returns a copy of ctx carrying c.
func NewContext(ctx context.Context, c *Collector) context.Context {
	return context.WithValue(ctx, ctxKey{}, c)
}

// FromContext returns the collector stored in ctx, if any.
func FromContext(ctx context.Context) (*Collector, bool) {
	c, ok := ctx.Value(ctxKey{}).(*Collector)
	return c, ok && c != nil
}

// MissingPolicy decides what [Report] does when ctx has no collector.
type MissingPolicy int

const (
	// MissingTrace logs the id at debug level and continues.
	MissingTrace MissingPolicy = iota
	// MissingPanic panics with ErrNoCollector. Use it in tests and
	// development to catch renders started without a collector.
	MissingPanic
)

var (
	policyMu sync.RWMutex
	policy   = MissingTrace
	logger   = log.Default()
)

// SetMissingPolicy sets the process-wide policy for reports without a
// collector. It should be called once at startup.
func SetMissingPolicy(p MissingPolicy) {
	policyMu.Lock()
	defer policyMu.Unlock()
	policy = p
}

// SetLogger sets the logger used for missing-collector traces.
func SetLogger(l *log.Logger) {
	policyMu.Lock()
	defer policyMu.Unlock()
	if l != nil {
		logger = l
	}
}

// Report is the reporting hook called by instrumented units. It records id
// on the collector carried by ctx.
func Report(ctx context.Context, id string) {
	if c, ok := FromContext(ctx); ok {
		c.Report(id)
		return
	}

	policyMu.RLock()
	p, l := policy, logger
	policyMu.RUnlock()

	if p == MissingPanic {
		panic(ErrNoCollector)
	}
	l.Debug("report without collector", "id", id)
}
