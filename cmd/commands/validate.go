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

	"github.com/spf13/cobra"
	"go.uber.org/multierr"

	"github.com/numaproj/numaslice/pkg/shared/logging"
)

func NewValidateCommand() *cobra.Command {
	var configFile string

	command := &cobra.Command{
		Use:   "validate",
		Short: "Plan a query without running it",
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := newConfig(configFile)
			if err != nil {
				return err
			}
			p, err := decodePipeline(v)
			if err != nil {
				return err
			}
			ctx := logging.WithLogger(context.Background(), logging.NewLogger().Named("validate"))
			q, source, err := plan(ctx, p)
			if err != nil {
				return err
			}
			if err = multierr.Append(source.Close(), q.Close()); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "query %q is valid\n", p.Query.Name)
			return nil
		},
	}
	command.Flags().StringVarP(&configFile, "config", "c", "", "Path of the pipeline configuration file, yaml or json")
	return command
}
