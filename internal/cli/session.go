package cli

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/sytabaresa/robot"
	"github.com/sytabaresa/robot/internal/presentation/tui"
	"github.com/sytabaresa/robot/pkg/domain"
)

// RunOptions configures an interactive session.
type RunOptions struct {
	Options
	In  io.Reader
	Out io.Writer
	// Context is a raw JSON object handed to the machine's context initializer.
	Context string
	Strict  bool
	// MaxConcurrentTasks caps the invoked tasks running at once. Zero means no cap.
	MaxConcurrentTasks int64
	// QueueSize is the Loop delivery buffer. Zero keeps the default.
	QueueSize int
	Quiet     bool
}

const replHelp = `Commands:
  <event> [json]     send an event, with optional JSON data
  @<n> <event> [json] send to the n-th descendant service
  :state             show the service tree
  :context           show the root context
  :events            list events the active states accept
  :help              show this help
  :quit              leave the session`

// RunSession interprets the selected machine and reads events from In until
// the root service reaches a final state, the input ends or ctx is cancelled.
func RunSession(ctx context.Context, opts RunOptions) error {
	logger := opts.logger()
	_, def, err := Load(opts.Options)
	if err != nil {
		return err
	}
	initial, err := parseContext(opts.Context)
	if err != nil {
		return err
	}

	out := &syncWriter{w: opts.Out}
	style := tui.NewStyler(opts.Out)
	interactive := isTerminal(opts.In) && !opts.Quiet
	if interactive {
		tui.PrintBanner(out, robot.Version)
	}

	loop := robot.NewLoop(loopOptions(logger, opts.QueueSize, robot.WithMaxConcurrentTasks(opts.MaxConcurrentTasks))...)
	printer := domain.Hooks{
		OnEnter: func(_ context.Context, e *domain.EnterEvent) {
			fmt.Fprintf(out, "  %s %s --%s--> %s\n",
				style.Faint("["+e.Machine.Label()+"]"), e.From, style.Event(e.Event.Type), style.State(e.To))
			delta := domain.DiffContext(e.Previous, e.Context)
			for _, k := range delta.Keys() {
				fmt.Fprintf(out, "    %s\n", style.Faint(fmt.Sprintf("%s = %v", k, delta[k])))
			}
		},
		OnUnhandledEvent: func(_ context.Context, e *domain.UnhandledEvent) {
			fmt.Fprintf(out, "  %s\n", style.Error(fmt.Sprintf("%q is not handled in state %q", e.Event.Type, e.State)))
		},
		OnTaskReturn: func(_ context.Context, e *domain.TaskEvent) {
			if e.Err != nil {
				fmt.Fprintf(out, "  %s\n", style.Error(fmt.Sprintf("task in %q failed: %v", e.State, e.Err)))
			}
		},
	}

	interpretOpts := []robot.Option{
		robot.WithLogger(logger),
		robot.WithScheduler(loop),
		robot.WithHooks(printer),
		robot.WithInitialContext(initial),
	}
	if opts.Strict {
		interpretOpts = append(interpretOpts, robot.WithStrictEvents())
	}

	svc, err := robot.Interpret(ctx, def, nil, interpretOpts...)
	if err != nil {
		return fmt.Errorf("failed to start %s: %w", def.Label(), err)
	}

	loopCtx, stopLoop := context.WithCancel(ctx)
	defer stopLoop()
	go loop.Run(loopCtx)

	if !opts.Quiet {
		printSystemMessage(out, "Started %s at '%s'. Type :help for commands.", def.Label(), svc.Current())
	}

	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(opts.In)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-loopCtx.Done():
				return
			}
		}
		err := scanner.Err()
		if err == nil {
			err = io.EOF
		}
		scanErr <- err
	}()

	for {
		var (
			final   bool
			current string
		)
		err := loop.Do(ctx, func(context.Context) error {
			final, current = svc.Final(), svc.Current()
			return nil
		})
		if err != nil {
			return handleExecutionError(err)
		}
		if final {
			if !opts.Quiet {
				printSystemMessage(out, "Finished at '%s'.", current)
			}
			return nil
		}

		if interactive {
			fmt.Fprint(out, "> ")
		}

		var line string
		select {
		case <-ctx.Done():
			if !opts.Quiet {
				fmt.Fprintln(out)
				printSystemMessage(out, "Interrupted at '%s'.", current)
			}
			return handleExecutionError(ctx.Err())
		case err := <-scanErr:
			// Let running tasks deliver before reporting where the input left the machine.
			if idleErr := waitIdle(ctx, loop); idleErr != nil {
				return handleExecutionError(idleErr)
			}
			if !opts.Quiet {
				_ = loop.Do(ctx, func(context.Context) error {
					printSystemMessage(out, "Input ended at '%s'.", svc.Current())
					return nil
				})
			}
			return handleExecutionError(err)
		case line = <-lines:
		}

		quit, err := execLine(ctx, loop, svc, out, strings.TrimSpace(line))
		if err != nil {
			fmt.Fprintf(out, "  %s\n", style.Error(err.Error()))
			logger.Debug("REPL command failed", "line", line, "err", err)
		}
		if quit {
			return nil
		}
	}
}

// waitIdle blocks until the loop has delivered every scheduled task.
func waitIdle(ctx context.Context, loop *robot.Loop) error {
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for loop.Pending() > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func execLine(ctx context.Context, loop *robot.Loop, root *robot.Service, w io.Writer, line string) (bool, error) {
	switch line {
	case "":
		return false, nil
	case ":q", ":quit", "quit", "exit":
		return true, nil
	case ":help", "help":
		fmt.Fprintln(w, replHelp)
		return false, nil
	case ":state":
		return false, loop.Do(ctx, func(context.Context) error {
			depth := 0
			for svc := root; svc != nil; svc = svc.Child() {
				fmt.Fprintf(w, "  %s%s: %s\n", strings.Repeat("  ", depth), svc.Definition().Label(), svc.Current())
				depth++
			}
			return nil
		})
	case ":context":
		return false, loop.Do(ctx, func(context.Context) error {
			data, err := json.MarshalIndent(root.Context(), "  ", "  ")
			if err != nil {
				return fmt.Errorf("cannot encode context: %w", err)
			}
			fmt.Fprintf(w, "  %s\n", data)
			return nil
		})
	case ":events":
		return false, loop.Do(ctx, func(context.Context) error {
			depth := 0
			for svc := root; svc != nil; svc = svc.Child() {
				state, _ := svc.Definition().State(svc.Current())
				fmt.Fprintf(w, "  @%d %s: %s\n", depth, svc.Current(), strings.Join(state.Events(), ", "))
				depth++
			}
			return nil
		})
	}

	depth, ev, err := parseEventLine(line)
	if err != nil {
		return false, err
	}
	return false, loop.Do(ctx, func(ctx context.Context) error {
		target := root
		for i := 0; i < depth && target != nil; i++ {
			target = target.Child()
		}
		if target == nil {
			return fmt.Errorf("no active service at depth %d", depth)
		}
		return target.Send(ctx, ev)
	})
}

// parseEventLine reads "[@n] name [json]".
func parseEventLine(line string) (int, domain.Event, error) {
	depth := 0
	if strings.HasPrefix(line, "@") {
		head, rest, _ := strings.Cut(line[1:], " ")
		n, err := strconv.Atoi(head)
		if err != nil || n < 0 {
			return 0, domain.Event{}, fmt.Errorf("invalid depth %q", head)
		}
		depth, line = n, strings.TrimSpace(rest)
	}

	name, payload, _ := strings.Cut(line, " ")
	if name == "" || strings.HasPrefix(name, ":") {
		return 0, domain.Event{}, fmt.Errorf("unknown command %q (try :help)", line)
	}
	name, err := domain.SanitizeEventType(name)
	if err != nil {
		return 0, domain.Event{}, err
	}
	ev := domain.NewEvent(name)
	if payload = strings.TrimSpace(payload); payload != "" {
		if err := json.Unmarshal([]byte(payload), &ev.Data); err != nil {
			return 0, domain.Event{}, fmt.Errorf("invalid event data: %w", err)
		}
	}
	return depth, ev, nil
}
