// Command doceq-worker hosts the queue engine's always-on background
// components (Pool, RecoveryLoop) and exposes the admin operations
// from spec §4.8 as one-shot subcommands against the same SQLite
// database, in the cobra-CLI-plus-plain-net/http idiom the pack's own
// catalog CLI uses.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	v := viper.New()

	root := &cobra.Command{
		Use:     "doceq-worker",
		Short:   "Durable job queue and orchestration engine for doceq projects",
		Version: version,
		Long: `doceq-worker drives the lifecycle of doceq projects through their
pipelines: bringing up containers, waiting for readiness, creating an
agent session, sending the user's initial prompt, building and
deploying production artifacts, and tearing everything down.

Run "serve" to start the background worker, or use the "jobs" and
"queue" subcommands to inspect and administer a running queue from
the same SQLite database.`,
		SilenceUsage: true,
	}

	bindConfigFlags(root, v)
	if cfgFile := os.Getenv("DOCEQ_CONFIG"); cfgFile != "" {
		v.SetConfigFile(cfgFile)
		_ = v.ReadInConfig()
	}

	root.AddCommand(newServeCmd(v))
	root.AddCommand(newJobsCmd(v))
	root.AddCommand(newQueueCmd(v))

	return root
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
