package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"picdrop/internal/config"
)

// Set with -ldflags "-X main.version=... -X main.commit=...".
var (
	version = "dev"
	commit  = "unknown"
)

func main() {
	if err := newRootCmd(os.Stdin, os.Stdout, os.Stderr).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// newRootCmd builds the CLI. Running it without a subcommand serves.
func newRootCmd(stdin io.Reader, stdout, stderr io.Writer) *cobra.Command {
	v := config.NewViper()
	var cfgFile string

	root := &cobra.Command{
		Use:           "picdrop",
		Short:         "Picture drop-box: public gallery, password-protected uploads",
		Version:       fmt.Sprintf("%s (%s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v, cfgFile, stderr)
		},
	}
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	flags.Int("port", 3000, "HTTP listen port")
	flags.String("backend", "disk", "storage backend: disk or s3")
	flags.String("dir", "uploads", "upload directory for the disk backend")
	flags.String("naming", "timestamp", "asset id scheme: timestamp or uuid")
	flags.String("log-level", "info", "log level: critical, error, warning, notice, info, debug")
	bindFlags(v, flags)

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd.Context(), v, cfgFile, stderr)
		},
	}
	root.AddCommand(serve, newHashPasswordCmd())
	return root
}

// bindFlags maps persistent flags onto config keys so a flag, when set,
// beats env and file values.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet) {
	keys := map[string]string{
		"port":      "port",
		"backend":   "storage.backend",
		"dir":       "storage.dir",
		"naming":    "storage.naming",
		"log-level": "log.level",
	}
	for flag, key := range keys {
		_ = v.BindPFlag(key, flags.Lookup(flag))
	}
}
