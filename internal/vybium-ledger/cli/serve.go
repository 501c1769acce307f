package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/vybium/vybium-ledger/internal/vybium-ledger/executor"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/metrics"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/process"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/service"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/stark"
	"github.com/vybium/vybium-ledger/internal/vybium-ledger/utils"
)

// ServeOptions holds flags for the serve commands.
type ServeOptions struct {
	*RootOptions
	Addr string
}

// NewServeCommand creates the serve command and its authorize and execute
// subcommands.
func NewServeCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run one of the HTTP services",
	}
	cmd.AddCommand(newServeAuthorizeCommand(&ServeOptions{RootOptions: rootOpts}))
	cmd.AddCommand(newServeExecuteCommand(&ServeOptions{RootOptions: rootOpts}))
	return cmd
}

func newServeAuthorizeCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "authorize",
		Short: "Serve GET /keygen/{seed} and POST /authorize",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.prepare(cmd)
			if err != nil {
				return err
			}
			if opts.Addr != "" {
				env.cfg.AuthorizeAddr = opts.Addr
			}
			srv, err := service.NewAuthorizeServer(env.cfg, env.serviceOptions()...)
			if err != nil {
				return WrapExitError(ExitCommandError, "authorize service", err)
			}
			return runUntilSignal(cmd.Context(), srv)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides authorize_addr)")
	return cmd
}

func newServeExecuteCommand(opts *ServeOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "execute",
		Short: "Serve POST /execute on a pool of prover workers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := opts.prepare(cmd)
			if err != nil {
				return err
			}
			if opts.Addr != "" {
				env.cfg.ExecuteAddr = opts.Addr
			}
			poolOpts := []executor.Option{
				executor.WithProcessOptions(
					process.WithProofParameters(proofParameters(env.cfg)),
					process.WithHashFunction(env.cfg.HashFunction),
				),
			}
			if env.metrics != nil {
				poolOpts = append(poolOpts, executor.WithMetrics(env.metrics))
			}
			pool, err := executor.NewPool(env.cfg.Workers, env.cfg.QueueDepth, poolOpts...)
			if err != nil {
				return WrapExitError(ExitCommandError, "executor pool", err)
			}
			defer pool.Close()
			srv, err := service.NewExecuteServer(env.cfg, pool, env.serviceOptions()...)
			if err != nil {
				return WrapExitError(ExitCommandError, "execute service", err)
			}
			return runUntilSignal(cmd.Context(), srv)
		},
	}
	cmd.Flags().StringVar(&opts.Addr, "addr", "", "listen address (overrides execute_addr)")
	return cmd
}

type serveEnv struct {
	cfg     *utils.Config
	logger  *slog.Logger
	metrics *metrics.Metrics
}

func (e *serveEnv) serviceOptions() []service.Option {
	opts := []service.Option{service.WithLogger(e.logger)}
	if e.metrics != nil {
		opts = append(opts, service.WithMetrics(e.metrics))
	}
	return opts
}

func (o *ServeOptions) prepare(cmd *cobra.Command) (*serveEnv, error) {
	cfg, err := o.config()
	if err != nil {
		return nil, err
	}
	logger, err := o.logger(cmd)
	if err != nil {
		return nil, err
	}
	env := &serveEnv{cfg: cfg, logger: logger}
	if cfg.Metrics {
		env.metrics = metrics.New()
	}
	return env, nil
}

func runUntilSignal(parent context.Context, srv *service.Server) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := srv.Run(ctx); err != nil {
		return WrapExitError(ExitFailure, "serve "+srv.Addr(), err)
	}
	return nil
}

func proofParameters(cfg *utils.Config) stark.Parameters {
	return stark.Parameters{
		FRIExpansionFactor:    cfg.Proof.ExpansionFactor,
		NumCollinearityChecks: cfg.Proof.CollinearityChecks,
		NumTraceRandomizers:   cfg.Proof.TraceRandomizers,
		FinalDegree:           cfg.Proof.FinalDegree,
		HashFunction:          cfg.HashFunction,
	}
}
