// Package cli wires the lezeh commands.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/sendyhalim/lezeh/internal/logger"
	"github.com/sendyhalim/lezeh/pkg/config"
)

// app carries state shared by every command of one invocation.
type app struct {
	v   *viper.Viper
	cfg config.AppConfig
}

// load reads the config file named by --config or LEZEH_CONFIG, falling back
// to $HOME/.lezeh/config.yaml, and configures logging.
func (a *app) load() error {
	path := a.v.GetString("config")
	explicit := path != ""
	if !explicit {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, ".lezeh", "config.yaml")
		}
	}

	cfg := config.Default()
	if path != "" {
		loaded, err := config.LoadFile(path)
		switch {
		case err == nil:
			cfg = loaded
		case !explicit && errors.Is(err, fs.ErrNotExist):
		default:
			return fmt.Errorf("config %s: %w", path, err)
		}
	}

	if lvl := a.v.GetString("log_level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	if err := logger.Init(cfg.Log.Level); err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// NewRootCommand creates the root command
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}

	rootCmd := &cobra.Command{
		Use:   "lezeh",
		Short: "Developer productivity tools",
		Long: color.CyanString(`lezeh - developer productivity tools

Cherry-pick a row out of a database together with every row it depends on
and every row depending on it, as INSERT statements or as a Graphviz graph.`),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.load()
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.String("config", "", "config file (default is $HOME/.lezeh/config.yaml)")
	flags.String("log-level", "", "log level: debug, info, warn or error")

	// Bind flags to viper; LEZEH_CONFIG and LEZEH_LOG_LEVEL work too.
	_ = a.v.BindPFlag("config", flags.Lookup("config"))
	_ = a.v.BindPFlag("log_level", flags.Lookup("log-level"))
	a.v.SetEnvPrefix("lezeh")
	a.v.AutomaticEnv()

	rootCmd.AddCommand(NewVersionCommand())
	rootCmd.AddCommand(newDBCommand(a))

	return rootCmd
}

// Execute runs the root command
func Execute() error {
	rootCmd := NewRootCommand()
	if err := rootCmd.Execute(); err != nil {
		errorColor := color.New(color.FgRed, color.Bold)
		errorColor.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return err
	}
	return nil
}
