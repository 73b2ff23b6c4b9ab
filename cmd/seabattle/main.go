package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	runtimedebug "runtime/debug"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/blukai/seabattle/internal/agent"
	"github.com/blukai/seabattle/internal/config"
	"github.com/blukai/seabattle/internal/console"
	"github.com/blukai/seabattle/internal/field"
	"github.com/blukai/seabattle/internal/metrics"
	"github.com/blukai/seabattle/internal/session"
	"github.com/phuslu/log"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
)

// how long to wait for the game to notice cancellation; a pending stdin read
// never does
const shutdownGrace = time.Second

type flags struct {
	timeout     time.Duration
	metricsAddr string
	logLevel    string
}

func rootCmd() *cobra.Command {
	f := flags{}

	cmd := &cobra.Command{
		Use:   "seabattle <seed> [<ip>] <port>",
		Short: "Play sea battle against another peer over tcp",
		Long: `Play sea battle against another peer over tcp.

With two arguments seabattle listens on <port> and waits for an opponent.
With three arguments it connects to <ip>:<port>. The connecting side shoots
first. <seed> picks the layout of your fleet.`,
		Args:          cobra.RangeArgs(2, 3),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			conf, err := loadConfig(cmd, f)
			if err != nil {
				return fmt.Errorf("could not process config: %w", err)
			}
			return run(conf, args)
		},
	}

	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Bound every network read and write (0 waits forever)")
	cmd.Flags().StringVar(&f.metricsAddr, "metrics-addr", "", "Serve prometheus metrics on this address")
	cmd.Flags().StringVar(&f.logLevel, "log-level", "", "One of trace, debug, info, warn, error")

	return cmd
}

// loadConfig reads the environment first, flags that were set win.
func loadConfig(cmd *cobra.Command, f flags) (*config.Config, error) {
	conf, err := config.Load()
	if err != nil {
		return nil, err
	}

	if cmd.Flags().Changed("timeout") {
		conf.IOTimeout = f.timeout
	}
	if cmd.Flags().Changed("metrics-addr") {
		conf.MetricsAddr = f.metricsAddr
	}
	if cmd.Flags().Changed("log-level") {
		conf.LogLevel = f.logLevel
	}

	if err := conf.Validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func configureLogger(level log.Level) *log.Logger {
	logger := log.DefaultLogger

	// https://github.com/phuslu/log?tab=readme-ov-file#pretty-console-writer
	logger.Level = level
	logger.Caller = 1
	logger.TimeFormat = "15:04:05"
	logger.Writer = &log.ConsoleWriter{
		ColorOutput:    true,
		QuoteString:    true,
		EndWithMessage: true,
		Writer:         os.Stderr,
	}

	return &logger
}

type endpoint struct {
	address string
	connect bool
}

func parseArgs(args []string) (int64, endpoint, error) {
	seed, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil {
		return 0, endpoint{}, fmt.Errorf("invalid seed %q: %w", args[0], err)
	}

	port := args[len(args)-1]
	if n, err := strconv.ParseUint(port, 10, 16); err != nil || n == 0 {
		return 0, endpoint{}, fmt.Errorf("invalid port %q", port)
	}

	if len(args) == 2 {
		return seed, endpoint{address: net.JoinHostPort("", port)}, nil
	}
	return seed, endpoint{address: net.JoinHostPort(args[1], port), connect: true}, nil
}

func connect(ctx context.Context, conf *config.Config, ep endpoint, logger *log.Logger) (net.Conn, error) {
	if ep.connect {
		return session.Dial(ctx, conf.Network, ep.address, logger)
	}

	listener, err := session.NewListener(conf.Network, ep.address, logger)
	if err != nil {
		return nil, err
	}
	fmt.Printf("Waiting for opponent on %s...\n", listener.Addr())
	return listener.Accept(ctx)
}

func run(conf *config.Config, args []string) error {
	seed, ep, err := parseArgs(args)
	if err != nil {
		return err
	}

	level, _ := conf.Level()
	logger := configureLogger(level)

	own, err := field.Generate(field.Classic, seed)
	if err != nil {
		return fmt.Errorf("could not generate field: %w", err)
	}
	logger.Info().Int64("seed", seed).Msgf("generated field %016x", own.Fingerprint())

	wg := new(sync.WaitGroup)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var m *metrics.Metrics
	if conf.MetricsAddr != "" {
		registry := prometheus.NewRegistry()
		m = metrics.New(registry)

		metricsServer, err := metrics.NewServer(conf.MetricsAddr, registry, logger)
		if err != nil {
			return fmt.Errorf("could not construct metrics server: %w", err)
		}
		logger.Info().Msgf("serving metrics on %s", metricsServer.Addr())

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := metricsServer.Run(ctx); err != nil {
				logger.Error().Err(err).Msg("metrics server run failed")
			}
		}()
	}

	done := make(chan struct{})
	var result agent.Result
	var gameErr error
	go func() {
		defer close(done)
		defer maybeDumpStack()

		conn, err := connect(ctx, conf, ep, logger)
		if err != nil {
			gameErr = fmt.Errorf("could not connect: %w", err)
			return
		}

		renderer := console.NewRenderer(os.Stdout, field.Classic)
		a := agent.New(conn, own, field.Classic,
			console.NewMoveSource(os.Stdin, os.Stdout),
			agent.WithRenderer(renderer.Render),
			agent.WithNotifier(renderer.Notify),
			agent.WithLogger(logger),
			agent.WithMetrics(m),
			agent.WithTimeout(conf.IOTimeout))
		result, gameErr = session.Play(ctx, conn, a, ep.connect)
	}()

	signalChan := make(chan os.Signal, 1)
	signal.Notify(signalChan, syscall.SIGTERM, syscall.SIGINT)
	defer signal.Stop(signalChan)

	select {
	case sig := <-signalChan:
		logger.Info().Msgf("received %+v signal", sig)
		cancel()
		select {
		case <-done:
		case <-time.After(shutdownGrace):
		}
		wg.Wait()
		return context.Canceled
	case <-done:
	}

	cancel()
	wg.Wait()
	if gameErr != nil {
		return fmt.Errorf("game failed: %w", gameErr)
	}

	logger.Info().Bool("won", result.Won).Int("rounds", result.Rounds).Msg("bye")
	return nil
}

// maybeDumpStack leaves a crash report in the working directory before
// letting the panic through.
func maybeDumpStack() {
	r := recover()
	if r == nil {
		return
	}

	cwd, err := os.Getwd()
	if err == nil {
		filename := filepath.Join(cwd, "seabattle-crash-"+time.Now().UTC().Format("20060102T150405Z")+".txt")
		report := fmt.Sprintf("panic: %v\n\n%s", r, runtimedebug.Stack())
		if err := os.WriteFile(filename, []byte(report), 0644); err == nil {
			fmt.Fprintf(os.Stderr, "crash report written to %s\n", filename)
		}
	}

	panic(r)
}

func erringMain() error {
	defer maybeDumpStack()
	return rootCmd().Execute()
}

func main() {
	if err := erringMain(); err != nil {
		if errors.Is(err, context.Canceled) {
			fmt.Fprintln(os.Stderr, "interrupted")
			os.Exit(130)
		}
		fmt.Fprintf(os.Stderr, "seabattle: %v\n", err)
		os.Exit(1)
	}
}
