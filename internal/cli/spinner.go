package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a status line while a long instrument stage runs. The
// line names the current stage and can be changed with Stage.
type Spinner struct {
	out    io.Writer
	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
	exited chan struct{}
	once   sync.Once

	mu    sync.Mutex
	stage string
	width int
}

// newSpinner returns a stopped spinner that ends with ctx.
func newSpinner(ctx context.Context, out io.Writer, stage string) *Spinner {
	ctx, cancel := context.WithCancel(ctx)
	return &Spinner{
		out:    out,
		ctx:    ctx,
		cancel: cancel,
		done:   make(chan struct{}),
		exited: make(chan struct{}),
		stage:  stage,
	}
}

// Start draws frames every 80ms until Stop or cancellation.
func (s *Spinner) Start() {
	go func() {
		defer close(s.exited)
		tick := time.NewTicker(80 * time.Millisecond)
		defer tick.Stop()

		for i := 0; ; i++ {
			select {
			case <-s.ctx.Done():
				s.clear()
				return
			case <-s.done:
				return
			case <-tick.C:
				s.draw(spinnerFrames[i%len(spinnerFrames)])
			}
		}
	}()
}

// Stage replaces the status text, for example when scanning gives way to
// rewriting.
func (s *Spinner) Stage(format string, args ...any) {
	s.mu.Lock()
	s.stage = fmt.Sprintf(format, args...)
	s.mu.Unlock()
}

func (s *Spinner) draw(frame string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	line := styleIconSpinner.Render(frame) + " " + StyleDim.Render(s.stage)
	pad := ""
	if n := len(s.stage) + 2; n < s.width {
		pad = strings.Repeat(" ", s.width-n)
	} else {
		s.width = n
	}
	fmt.Fprintf(s.out, "\r%s%s", line, pad)
}

func (s *Spinner) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	fmt.Fprintf(s.out, "\r%s\r", strings.Repeat(" ", max(s.width, len(s.stage)+2)+2))
}

// Stop ends the animation and clears the line. Extra calls are no-ops.
func (s *Spinner) Stop() {
	s.once.Do(func() {
		close(s.done)
		<-s.exited
		s.cancel()
		s.clear()
	})
}

// StopWithSuccess stops and prints a success line.
func (s *Spinner) StopWithSuccess(message string) {
	s.Stop()
	printSuccess(s.out, "%s", message)
}

// StopWithError stops and prints an error line.
func (s *Spinner) StopWithError(message string) {
	s.Stop()
	printError(s.out, "%s", message)
}

// Cancelled reports whether the parent context ended before Stop.
func (s *Spinner) Cancelled() bool {
	select {
	case <-s.done:
		return false
	default:
		return s.ctx.Err() != nil
	}
}
