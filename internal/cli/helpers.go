package cli

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"golang.org/x/term"

	"github.com/sytabaresa/robot"
	"github.com/sytabaresa/robot/internal/logging"
	"github.com/sytabaresa/robot/pkg/domain"
	"github.com/sytabaresa/robot/pkg/loader"
	"github.com/sytabaresa/robot/pkg/registry"
)

// SignalContext wraps a context and captures the signal that cancelled it.
type SignalContext struct {
	context.Context
	Cancel func()
	start  sync.Once
	stop   sync.Once
	sigCh  chan os.Signal
	sigVal os.Signal
	mu     sync.Mutex
}

// NewSignalContext creates a context that is cancelled on SIGINT or SIGTERM.
// It acts as a drop-in replacement for signal.NotifyContext but allows retrieving the signal.
func NewSignalContext(parent context.Context) *SignalContext {
	ctx, cancel := context.WithCancel(parent)
	sc := &SignalContext{
		Context: ctx,
		Cancel:  cancel,
		sigCh:   make(chan os.Signal, 1),
	}

	sc.start.Do(func() {
		signal.Notify(sc.sigCh, os.Interrupt, syscall.SIGTERM)
		go func() {
			select {
			case sig := <-sc.sigCh:
				sc.mu.Lock()
				sc.sigVal = sig
				sc.mu.Unlock()
				sc.Cancel()
			case <-sc.Context.Done():
				// Context cancelled elsewhere
			}
			sc.stop.Do(func() {
				signal.Stop(sc.sigCh)
			})
		}()
	})

	return sc
}

// Signal returns the signal that caused the context to be cancelled, or nil.
func (sc *SignalContext) Signal() os.Signal {
	sc.mu.Lock()
	defer sc.mu.Unlock()
	return sc.sigVal
}

// Options locates the machine a command works on.
type Options struct {
	// Path is the YAML or JSON document.
	Path string
	// Machine selects a machine of the document. Empty means the entry machine.
	Machine string
	// Registry resolves callback names. Nil means the builtins.
	Registry *registry.Registry
	Logger   *slog.Logger
}

func (o Options) logger() *slog.Logger {
	if o.Logger != nil {
		return o.Logger
	}
	return logging.NewNop()
}

// Load reads the document and returns it with the selected machine.
func Load(opts Options) (*loader.Document, *domain.Definition, error) {
	loadOpts := []loader.Option{loader.WithLogger(opts.logger())}
	if opts.Registry != nil {
		loadOpts = append(loadOpts, loader.WithRegistry(opts.Registry))
	}

	doc, err := loader.New(loadOpts...).Load(opts.Path)
	if err != nil {
		return nil, nil, err
	}
	if opts.Machine == "" {
		return doc, doc.Main(), nil
	}
	def, ok := doc.Machine(opts.Machine)
	if !ok {
		return nil, nil, fmt.Errorf("machine %q not found in %s (have %v)", opts.Machine, opts.Path, doc.Order)
	}
	return doc, def, nil
}

// loopOptions builds the Loop options shared by run and serve.
func loopOptions(logger *slog.Logger, queueSize int, extra ...robot.LoopOption) []robot.LoopOption {
	opts := append([]robot.LoopOption{robot.WithLoopLogger(logger)}, extra...)
	if queueSize > 0 {
		opts = append(opts, robot.WithQueueSize(queueSize))
	}
	return opts
}

// parseContext decodes the --context flag.
func parseContext(raw string) (domain.Context, error) {
	if raw == "" {
		return nil, nil
	}
	var c domain.Context
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return nil, fmt.Errorf("error parsing --context JSON: %w", err)
	}
	return c, nil
}

// printSystemMessage prints a standardized system message.
func printSystemMessage(w io.Writer, format string, args ...any) {
	fmt.Fprintf(w, ">>> %s\n", fmt.Sprintf(format, args...))
}

// isTerminal reports whether r is an interactive terminal.
func isTerminal(v any) bool {
	f, ok := v.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// syncWriter serializes writes coming from the loop goroutine and the prompt.
type syncWriter struct {
	mu sync.Mutex
	w  io.Writer
}

func (s *syncWriter) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.w.Write(p)
}

func isInterrupted(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, io.EOF)
}

func handleExecutionError(err error) error {
	if err == nil || isInterrupted(err) {
		return nil // Exit 0 for interruptions
	}
	return err
}
