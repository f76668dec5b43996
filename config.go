package main

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

type Config struct {
	bind              string
	port              int
	adminPort         int
	maxClients        int
	heartbeatInterval time.Duration
	heartbeatTimeout  time.Duration
	mazeMin           int
	mazeMax           int
	directoryURL      string
	logFile           string
	profile           bool
	verbose           bool
	version           bool
}

func (c *Config) validate() error {
	if c.port < 1 || c.port > 65535 {
		return fmt.Errorf("invalid port (must be between 1-65535 inclusive): %d", c.port)
	}
	if c.adminPort != 0 && (c.adminPort < 1 || c.adminPort > 65535) {
		return fmt.Errorf("invalid admin port: %d", c.adminPort)
	}
	if c.maxClients < 1 {
		return fmt.Errorf("invalid max clients (must be at least 1): %d", c.maxClients)
	}
	if c.heartbeatInterval <= 0 || c.heartbeatTimeout <= 0 {
		return errors.New("heartbeat interval and timeout must be positive")
	}
	if c.heartbeatTimeout <= c.heartbeatInterval {
		return errors.New("heartbeat timeout must exceed the sweep interval")
	}
	if c.mazeMin < 5 || c.mazeMin%2 == 0 || c.mazeMax%2 == 0 {
		return fmt.Errorf("maze sizes must be odd and at least 5: %d-%d", c.mazeMin, c.mazeMax)
	}
	if c.mazeMax < c.mazeMin {
		return fmt.Errorf("maze size range is inverted: %d-%d", c.mazeMin, c.mazeMax)
	}
	return nil
}

func newCmd(cfg *Config) *cobra.Command {
	v := viper.New()
	v.SetEnvPrefix("MAZERACE")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	cmd := &cobra.Command{
		Use:           "mazerace",
		Short:         "Session, presence, and matchmaking server for two-player maze races.",
		Args:          cobra.ExactArgs(0),
		SilenceErrors: true,
		Version:       releaseVersion,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := cfg.validate(); err != nil {
				return err
			}
			return Serve(cmd.Context(), cfg)
		},
	}

	fs := cmd.Flags()

	fs.SetNormalizeFunc(func(_ *pflag.FlagSet, name string) pflag.NormalizedName {
		return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
	})

	fs.StringVarP(&cfg.bind, "bind", "b", "0.0.0.0", "address to bind to (env: MAZERACE_BIND)")
	fs.IntVarP(&cfg.port, "port", "p", 65432, "port to listen on for game clients (env: MAZERACE_PORT)")
	fs.IntVar(&cfg.adminPort, "admin-port", 0, "port for the admin http surface, 0 disables (env: MAZERACE_ADMIN_PORT)")
	fs.IntVar(&cfg.maxClients, "max-clients", 20, "maximum simultaneous connections (env: MAZERACE_MAX_CLIENTS)")
	fs.DurationVar(&cfg.heartbeatInterval, "heartbeat-interval", time.Second, "liveness sweep interval (env: MAZERACE_HEARTBEAT_INTERVAL)")
	fs.DurationVar(&cfg.heartbeatTimeout, "heartbeat-timeout", 10*time.Second, "time before a silent connection is reclaimed (env: MAZERACE_HEARTBEAT_TIMEOUT)")
	fs.IntVar(&cfg.mazeMin, "maze-min", 21, "smallest maze side length, odd (env: MAZERACE_MAZE_MIN)")
	fs.IntVar(&cfg.mazeMax, "maze-max", 29, "largest maze side length, odd (env: MAZERACE_MAZE_MAX)")
	fs.StringVar(&cfg.directoryURL, "directory-url", "", "directory service to register this server's address with (env: MAZERACE_DIRECTORY_URL)")
	fs.StringVar(&cfg.logFile, "log-file", "", "path to a rolling log file (env: MAZERACE_LOG_FILE)")
	fs.BoolVar(&cfg.profile, "profile", false, "register net/http/pprof handlers on the admin surface (env: MAZERACE_PROFILE)")
	fs.BoolVarP(&cfg.verbose, "verbose", "v", false, "display additional output (env: MAZERACE_VERBOSE)")
	fs.BoolVarP(&cfg.version, "version", "V", false, "display version and exit (env: MAZERACE_VERSION)")

	fs.VisitAll(func(f *pflag.Flag) {
		_ = v.BindPFlag(f.Name, f)
		_ = v.BindEnv(f.Name)
		if !f.Changed && v.IsSet(f.Name) {
			_ = fs.Set(f.Name, fmt.Sprintf("%v", v.Get(f.Name)))
		}
	})

	cmd.CompletionOptions.HiddenDefaultCmd = true
	cmd.SetHelpCommand(&cobra.Command{Hidden: true})
	cmd.SetVersionTemplate("mazerace v{{.Version}}\n")

	cmd.SilenceErrors = true
	cmd.SilenceUsage = true

	return cmd
}
