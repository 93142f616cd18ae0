package stream

import (
	"context"
	"fmt"
)

// EventKind identifies a render lifecycle signal.
type EventKind int

const (
	// EventChunk carries body bytes in Data.
	EventChunk EventKind = iota + 1
	// EventShellReady marks the point where the initial shell can be flushed.
	EventShellReady
	// EventAllReady marks that every boundary has resolved. More chunks may
	// still follow until the channel is closed.
	EventAllReady
	// EventShellError reports a failure before the shell was ready.
	EventShellError
	// EventError reports a failure at any point of the render.
	EventError
)

func (k EventKind) String() string {
	switch k {
	case EventChunk:
		return "chunk"
	case EventShellReady:
		return "shell-ready"
	case EventAllReady:
		return "all-ready"
	case EventShellError:
		return "shell-error"
	case EventError:
		return "error"
	}
	return fmt.Sprintf("event(%d)", int(k))
}

// Event is one signal from a [Renderer].
type Event struct {
	Kind EventKind
	Data []byte
	Err  error
}

// Renderer is the rendering engine. Render starts rendering url and
// returns the event stream; closing the channel ends the render.
//
// The context carries the request's collector: rendered lazy units report
// themselves with collector.Report(ctx, id). When ctx is canceled the
// renderer must stop sending and close the channel.
type Renderer interface {
	Render(ctx context.Context, url string) <-chan Event
}

// RendererFunc adapts a function to the Renderer interface.
type RendererFunc func(ctx context.Context, url string) <-chan Event

// Render implements Renderer.
func (f RendererFunc) Render(ctx context.Context, url string) <-chan Event { return f(ctx, url) }

// Send delivers ev unless ctx is done first. It is a helper for Renderer
// implementations.
func Send(ctx context.Context, ch chan<- Event, ev Event) bool {
	select {
	case ch <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}
