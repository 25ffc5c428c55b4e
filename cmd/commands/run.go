/*
Copyright 2022 The Numaproj Authors.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/numaproj/numaslice"
	"github.com/numaproj/numaslice/pkg/apis/numaslice/v1alpha1"
	"github.com/numaproj/numaslice/pkg/engine"
	"github.com/numaproj/numaslice/pkg/metrics"
	"github.com/numaproj/numaslice/pkg/shared/logging"
	"github.com/numaproj/numaslice/pkg/sinks"
	"github.com/numaproj/numaslice/pkg/sources"
	"github.com/numaproj/numaslice/pkg/watermark/wmb"
)

func NewRunCommand() *cobra.Command {
	var (
		configFile  string
		metricsPort int
	)

	command := &cobra.Command{
		Use:   "run",
		Short: "Run a query until its source is exhausted or the process is signalled",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newConfig(configFile)
			if err != nil {
				return err
			}
			if err = v.BindPFlag("metricsPort", cmd.Flags().Lookup("metrics-port")); err != nil {
				return err
			}
			p, err := decodePipeline(v)
			if err != nil {
				return err
			}
			log := logging.NewLogger().Named("run").With("query", p.Query.Name)
			log.Infow("Starting query runner", "version", numaslice.GetVersion())
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return run(logging.WithLogger(ctx, log), p)
		},
	}
	command.Flags().StringVarP(&configFile, "config", "c", "", "Path of the pipeline configuration file, yaml or json")
	command.Flags().IntVar(&metricsPort, "metrics-port", v1alpha1.DefaultMetricsPort, "Port of the metrics server, 0 disables it")
	return command
}

// plan builds the query, its sinks and its source.
func plan(ctx context.Context, p *v1alpha1.Pipeline) (*engine.Query, sources.Sourcer, error) {
	schema, err := pipelineSchema(p)
	if err != nil {
		return nil, nil, err
	}
	sink, err := sinks.NewSink(ctx, p.Query.Name, "sink", &p.Sink)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create sink, %w", err)
	}
	var opts []engine.Option
	if p.LateSink != nil {
		lateSink, err := sinks.NewSink(ctx, p.Query.Name, "late", p.LateSink)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to create late sink, %w", err)
		}
		opts = append(opts, engine.WithLateSink(lateSink))
	}
	q, err := engine.NewQuery(ctx, p.Query, schema, sink, opts...)
	if err != nil {
		return nil, nil, err
	}
	origins := make([]wmb.OriginID, len(p.Query.Origins))
	for i, o := range p.Query.Origins {
		origins[i] = wmb.OriginID(o)
	}
	source, err := sources.NewSource(ctx, p.Query.Name, p.Source, schema, origins)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create source, %w", err)
	}
	return q, source, nil
}

func run(ctx context.Context, p *v1alpha1.Pipeline) error {
	log := logging.FromContext(ctx)
	q, source, err := plan(ctx, p)
	if err != nil {
		return err
	}
	version := numaslice.GetVersion()
	metrics.BuildInfo.WithLabelValues(version.Version, version.Platform).Set(1)

	if port := p.GetMetricsPort(); port > 0 {
		opts := append(metrics.NewMetricsOptions(ctx, []metrics.HealthChecker{q}), metrics.WithPort(port))
		shutdown, err := metrics.NewMetricsServer(opts...).Start(ctx)
		if err != nil {
			return fmt.Errorf("failed to start metrics server, %w", err)
		}
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := shutdown(sctx); err != nil {
				log.Warnw("Failed to shut down metrics server", zap.Error(err))
			}
		}()
	}

	runErr := q.Run(ctx, source)
	return multierr.Append(runErr, q.Close())
}
