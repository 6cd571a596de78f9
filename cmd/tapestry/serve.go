package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aretw0/tapestry"
	"github.com/aretw0/tapestry/internal/cli"
	httpAdapter "github.com/aretw0/tapestry/pkg/adapters/http"
	"github.com/spf13/cobra"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP session server",
	Long:  `Serves sessions over a JSON API. Every session gets its own copy of the network and its own interaction loop; change events stream over SSE.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		networkPath, _ := cmd.Flags().GetString("network")
		modelID, _ := cmd.Flags().GetString("model")

		spec, err := cli.LoadNetwork(networkPath)
		if err != nil {
			return err
		}
		rt, err := newRuntime()
		if err != nil {
			return err
		}
		defer rt.Close()

		streams := httpAdapter.NewStreamManager(rt.Logger)
		mgr := rt.Sessions(rt.Factory(spec, modelID, func(id string) []tapestry.Option {
			return []tapestry.Option{tapestry.WithEventSink(streams.Sink(id))}
		}))
		defer mgr.Close()

		srv := httpAdapter.NewServer(mgr,
			httpAdapter.WithLogger(rt.Logger),
			httpAdapter.WithStreams(streams),
			httpAdapter.WithMetrics(rt.Registry),
		)
		httpServer := &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           srv.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		serverErrors := make(chan error, 1)
		go func() {
			fmt.Fprintf(cmd.ErrOrStderr(), "Starting Tapestry Server on %s\n", httpServer.Addr)
			serverErrors <- httpServer.ListenAndServe()
		}()

		shutdown := make(chan os.Signal, 1)
		signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

		select {
		case err := <-serverErrors:
			return fmt.Errorf("server error: %w", err)
		case sig := <-shutdown:
			fmt.Fprintf(cmd.ErrOrStderr(), "\nStart shutdown... Signal: %v\n", sig)
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				fmt.Fprintf(cmd.ErrOrStderr(), "Graceful shutdown did not complete in %v: %v\n", 5*time.Second, err)
				if cerr := httpServer.Close(); cerr != nil && !errors.Is(cerr, http.ErrServerClosed) {
					return cerr
				}
			}
			fmt.Fprintln(cmd.ErrOrStderr(), "Tapestry Server stopped gracefully")
			return nil
		}
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", ":8080", "Address to listen on")
	serveCmd.Flags().String("network", "", "YAML network spec (default: built-in demo network)")
	serveCmd.Flags().String("model", "", "Model each session starts in (default: root)")
	_ = settings.BindPFlag("http.addr", serveCmd.Flags().Lookup("addr"))
}
