package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"

	"github.com/sytabaresa/robot"
	httpAdapter "github.com/sytabaresa/robot/pkg/adapters/http"
	redisAdapter "github.com/sytabaresa/robot/pkg/adapters/redis"
	"github.com/sytabaresa/robot/pkg/debug"
	"github.com/sytabaresa/robot/pkg/domain"
	"github.com/sytabaresa/robot/pkg/observability"
)

// ServeOptions configures the HTTP server.
type ServeOptions struct {
	Options
	Addr string
	// Context is a raw JSON object handed to the machine's context initializer.
	Context string
	Strict  bool
	// RedisURL enables publishing every record to a Redis stream.
	RedisURL    string
	RedisStream string
	// QueueSize is the Loop delivery buffer. Zero keeps the default.
	QueueSize int
	Out       io.Writer
}

// Server is a started service tree with its HTTP handler.
type Server struct {
	Service *robot.Service
	Handler http.Handler
	loop    *robot.Loop
	closers []func() error
}

// Run delivers task outcomes until ctx is done. The handler requires it.
func (s *Server) Run(ctx context.Context) error {
	return s.loop.Run(ctx)
}

// Close releases the Redis client, if any.
func (s *Server) Close() error {
	var errs []error
	for _, c := range s.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// NewServer loads the machine, starts its service on a Loop and builds the
// handler with metrics, SSE streams and the optional Redis audit stream wired in.
func NewServer(ctx context.Context, opts ServeOptions) (*Server, error) {
	logger := opts.logger()
	_, def, err := Load(opts.Options)
	if err != nil {
		return nil, err
	}
	initial, err := parseContext(opts.Context)
	if err != nil {
		return nil, err
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := observability.NewMetrics(reg)
	if err != nil {
		return nil, fmt.Errorf("failed to register metrics: %w", err)
	}

	streams := httpAdapter.NewStreamManager(httpAdapter.WithStreamLogger(logger))
	hooks := []domain.Hooks{metrics.Hooks(), streams.Hooks()}

	srv := &Server{loop: robot.NewLoop(loopOptions(logger, opts.QueueSize)...)}
	if opts.RedisURL != "" {
		redisOpts, err := backend.ParseURL(opts.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("invalid redis url: %w", err)
		}
		client := backend.NewClient(redisOpts)
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		pubOpts := []redisAdapter.Option{redisAdapter.WithLogger(logger)}
		if opts.RedisStream != "" {
			pubOpts = append(pubOpts, redisAdapter.WithStream(opts.RedisStream))
		}
		pub := redisAdapter.NewFromClient(client, pubOpts...)
		hooks = append(hooks, pub.Hooks())
		srv.closers = append(srv.closers, client.Close)
		logger.Info("publishing records to redis", "stream", pub.Stream())
	}

	interpretOpts := []robot.Option{
		robot.WithLogger(logger),
		robot.WithScheduler(srv.loop),
		robot.WithHooks(debug.Chain(hooks...)),
		robot.WithInitialContext(initial),
	}
	if opts.Strict {
		interpretOpts = append(interpretOpts, robot.WithStrictEvents())
	}
	srv.Service, err = robot.Interpret(ctx, def, nil, interpretOpts...)
	if err != nil {
		srv.Close()
		return nil, fmt.Errorf("failed to start %s: %w", def.Label(), err)
	}

	srv.Handler = httpAdapter.NewHandler(srv.Service,
		httpAdapter.WithLoop(srv.loop),
		httpAdapter.WithStreams(streams),
		httpAdapter.WithGatherer(reg),
		httpAdapter.WithLogger(logger),
	)
	return srv, nil
}

// Serve runs the HTTP server until ctx is cancelled, then shuts it down gracefully.
func Serve(ctx context.Context, opts ServeOptions) error {
	logger := opts.logger()
	srv, err := NewServer(ctx, opts)
	if err != nil {
		return err
	}
	defer srv.Close()

	loopCtx, stopLoop := context.WithCancel(context.WithoutCancel(ctx))
	defer stopLoop()
	go srv.Run(loopCtx)

	httpSrv := &http.Server{
		Addr:              opts.Addr,
		Handler:           srv.Handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)
	go func() {
		printSystemMessage(opts.Out, "Serving %s on %s", srv.Service.Definition().Label(), opts.Addr)
		serverErrors <- httpSrv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case <-ctx.Done():
		logger.Info("shutting down", "addr", opts.Addr)

		// Give outstanding requests a deadline for completion.
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := httpSrv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("graceful shutdown did not complete", "err", err)
			return httpSrv.Close()
		}
		printSystemMessage(opts.Out, "Server stopped gracefully")
		return nil
	}
}
