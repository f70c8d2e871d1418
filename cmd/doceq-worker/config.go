package main

import (
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// workerConfig is every flag/env-settable parameter the worker binary
// needs, bound through viper so DOCEQ_-prefixed environment variables
// (or a --config file) can override the cobra flag defaults without
// a second config-loading path.
type workerConfig struct {
	DBPath     string
	DataDir    string
	TemplateDir string
	ImageRepo  string
	KeepVersions int

	ProjectPortBase    int
	ProductionPortBase int

	SessionServerURL string

	BuildCommand      string
	BuildArgs         []string
	BuildOutputSubdir string

	Concurrency      int
	LeaseMs          int
	PollMs           int
	RecoveryInterval int
}

// bindConfigFlags registers every workerConfig flag onto cmd's
// persistent flag set and binds it into v, so DOCEQ_FOO env vars and
// --foo flags resolve through the same viper.Get call.
func bindConfigFlags(cmd *cobra.Command, v *viper.Viper) {
	flags := cmd.PersistentFlags()

	flags.String("db", "./doceq.db", "path to the SQLite database file")
	flags.String("data-dir", "./data", "root directory project filesystems are materialized under")
	flags.String("template-dir", "./template", "scaffold directory new projects are copied from")
	flags.String("image-repo", "doce-prod", "image tag prefix for production builds")
	flags.Int("keep-versions", 2, "number of old production versions to retain")

	flags.Int("project-port-base", 4000, "first host port allocated to project preview/session containers")
	flags.Int("production-port-base", 5000, "first host port allocated to production deployments")

	flags.String("session-server-url", "http://127.0.0.1:4096", "base URL of the opencode session server")

	flags.String("build-command", "npm", "production build command")
	flags.StringSlice("build-args", []string{"run", "build"}, "production build command arguments")
	flags.String("build-output-subdir", "dist", "build output directory, relative to the project directory")

	flags.Int("concurrency", 2, "max in-flight handlers per worker process")
	flags.Int("lease-ms", 60000, "lease duration in milliseconds")
	flags.Int("poll-ms", 250, "idle scheduler poll interval in milliseconds")
	flags.Int("recovery-interval-ms", 10000, "lease-recovery sweep interval in milliseconds")

	v.SetEnvPrefix("doceq")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	_ = v.BindPFlags(flags)
}

func loadConfig(v *viper.Viper) workerConfig {
	return workerConfig{
		DBPath:       v.GetString("db"),
		DataDir:      v.GetString("data-dir"),
		TemplateDir:  v.GetString("template-dir"),
		ImageRepo:    v.GetString("image-repo"),
		KeepVersions: v.GetInt("keep-versions"),

		ProjectPortBase:    v.GetInt("project-port-base"),
		ProductionPortBase: v.GetInt("production-port-base"),

		SessionServerURL: v.GetString("session-server-url"),

		BuildCommand:      v.GetString("build-command"),
		BuildArgs:         v.GetStringSlice("build-args"),
		BuildOutputSubdir: v.GetString("build-output-subdir"),

		Concurrency:      v.GetInt("concurrency"),
		LeaseMs:          v.GetInt("lease-ms"),
		PollMs:           v.GetInt("poll-ms"),
		RecoveryInterval: v.GetInt("recovery-interval-ms"),
	}
}

func (c workerConfig) leaseDuration() time.Duration {
	return time.Duration(c.LeaseMs) * time.Millisecond
}

func (c workerConfig) pollInterval() time.Duration {
	return time.Duration(c.PollMs) * time.Millisecond
}

func (c workerConfig) recoveryInterval() time.Duration {
	return time.Duration(c.RecoveryInterval) * time.Millisecond
}
