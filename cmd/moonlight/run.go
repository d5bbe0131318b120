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

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/wyatuestc/moonlight"
	"github.com/wyatuestc/moonlight/internal/metrics"
	"github.com/wyatuestc/moonlight/internal/transport/kafka"
	"github.com/wyatuestc/moonlight/obconfig"
	"github.com/wyatuestc/moonlight/obtopology"
)

var (
	metricsAddr    string
	createTopics   bool
	requestTimeout time.Duration
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Deploy the statements and handle instance events",
	Long: `Load the configuration, build and deploy the firewall statement, then
poll the watched instance and log instance-up, alert and read events until
interrupted.

Examples:
  moonlight run --config SampleApp.properties
  moonlight run --config app.yaml --metrics-addr :9090 --log-level debug`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address; empty disables")
	runCmd.Flags().BoolVar(&createTopics, "create-topics", true, "Create the Kafka topics if they do not exist")
	runCmd.Flags().DurationVar(&requestTimeout, "request-timeout", time.Minute, "Forget read requests not answered within this time")

	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, args []string) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}

	settings := obconfig.Load(configPath, logger).Settings(logger)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	tr, err := kafka.New(settings.KafkaBrokers, settings.KafkaTopicPrefix,
		kafka.WithLog(logger.WithGroup("kafka")),
		kafka.WithRequestTimeout(requestTimeout),
	)
	if err != nil {
		return err
	}
	defer tr.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if createTopics {
		if err := tr.EnsureTopics(ctx, 1, 1); err != nil {
			return err
		}
	}

	top := obtopology.NewStaticTopology(settings.TopologySegments, settings.TopologyInstances)
	app, err := moonlight.New(appName, settings,
		moonlight.WithLog(logger),
		moonlight.WithMetrics(m),
		moonlight.WithResolver(top),
		moonlight.WithDeployer(tr),
		moonlight.WithRequester(tr),
		moonlight.WithEventSource(tr),
	)
	if err != nil {
		return err
	}
	app.HandleAppStart(top)

	grp, ctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		return app.Run(ctx)
	})
	if metricsAddr != "" {
		srv := &http.Server{
			Addr:              metricsAddr,
			Handler:           promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
			ReadHeaderTimeout: 10 * time.Second,
		}
		grp.Go(func() error {
			logger.Info("Serving metrics", "addr", metricsAddr)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		grp.Go(func() error {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		})
	}

	err = grp.Wait()
	logger.Info("Stopped", "app", app.Name())
	return err
}
