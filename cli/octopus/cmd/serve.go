package cmd

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ainvaltin/httpsrv"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/octopus-network/relay-client/logger"
	"github.com/octopus-network/relay-client/poller"
	"github.com/octopus-network/relay-client/rpc"
)

type serveFlags struct {
	rpc.ServerConfiguration
	PollPeriod      time.Duration
	MaxHeightAge    time.Duration
	ShutdownTimeout time.Duration
}

func newServeCmd(config *baseConfiguration) *cobra.Command {
	flags := &serveFlags{}
	var cmd = &cobra.Command{
		Use:   "serve",
		Short: "serves the registry over REST and JSON-RPC while polling the block height",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), config, flags)
		},
	}
	cmd.Flags().StringVar(&flags.Address, "rpc-server-address", "localhost:26866", "address the RPC server listens on, in the form \"host:port\"")
	cmd.Flags().DurationVar(&flags.ReadTimeout, "rpc-server-read-timeout", 0, "maximum duration for reading the entire request, including the body")
	cmd.Flags().DurationVar(&flags.ReadHeaderTimeout, "rpc-server-read-header-timeout", 0, "amount of time allowed to read request headers")
	cmd.Flags().DurationVar(&flags.WriteTimeout, "rpc-server-write-timeout", 0, "maximum duration before timing out writes of the response")
	cmd.Flags().DurationVar(&flags.IdleTimeout, "rpc-server-idle-timeout", 0, "maximum amount of time to wait for the next request when keep-alives are enabled")
	cmd.Flags().Int64Var(&flags.MaxBodyBytes, "rpc-server-max-body", rpc.DefaultMaxBodyBytes, "maximum number of bytes the server will read parsing the request body")
	cmd.Flags().IntVar(&flags.BatchItemLimit, "rpc-server-batch-item-limit", rpc.DefaultBatchItemLimit, "maximum number of requests in a batch")
	cmd.Flags().IntVar(&flags.BatchResponseSizeLimit, "rpc-server-batch-response-size-limit", rpc.DefaultBatchResponseSizeLimit, "maximum number of response bytes across all requests in a batch")
	cmd.Flags().DurationVar(&flags.ShutdownTimeout, "rpc-server-shutdown-timeout", 5*time.Second, "how long to wait for the active requests to finish on shutdown")
	cmd.Flags().DurationVar(&flags.PollPeriod, "poll-period", poller.DefaultPeriod, "block height poll period")
	cmd.Flags().DurationVar(&flags.MaxHeightAge, "max-height-age", 10*time.Second, "block height older than this is reported as stale")
	return cmd
}

func serve(ctx context.Context, config *baseConfiguration, flags *serveFlags) error {
	if flags.IsAddressEmpty() {
		return errors.New("RPC server address is empty")
	}
	rt, err := config.newReadOnlyRuntime()
	if err != nil {
		return err
	}
	defer rt.close()

	p, err := config.newPoller(rt, poller.WithPeriod(flags.PollPeriod))
	if err != nil {
		return fmt.Errorf("creating block height poller: %w", err)
	}

	obs := config.observe
	log := config.log
	api := rpc.NewRelayAPI(rt.registry, p, rpc.WithMaxHeightAge(flags.MaxHeightAge))
	flags.APIs = []rpc.API{{Namespace: "relay", Service: api}}
	rpcServer, err := rpc.NewHTTPServer(&flags.ServerConfiguration, obs, rpc.RegistryEndpoints(api, log))
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return p.Run(ctx) })

	g.Go(func() error {
		log.InfoContext(ctx, fmt.Sprintf("relay RPC server starting on %s", rpcServer.Addr))
		err := httpsrv.Run(ctx, *rpcServer, httpsrv.ShutdownTimeout(flags.ShutdownTimeout))
		log.InfoContext(ctx, "relay RPC server exited", logger.Error(err))
		return err
	})

	return g.Wait()
}
