package cli

import (
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose    bool
	Format     string // "json" | "text"
	ConfigPath string
	SchemaDir  string

	// Config is the loaded project file; nil when there is none.
	Config *Config
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the kquery CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "kquery",
		Short: "kquery - typed queries over a versioned object store",
		Long: `Analyze and evaluate queries over a versioned temporal object store.

Types are declared in CUE, queries are YAML documents. Settings are read
from a kquery.toml file in the working directory or one of its parents.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.setup(cmd)
		},
	}

	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")
	cmd.PersistentFlags().StringVar(&opts.ConfigPath, "config", "", "path to kquery.toml (default: search upwards)")
	cmd.PersistentFlags().StringVar(&opts.SchemaDir, "schema", "", "directory of the CUE schema")

	cmd.AddCommand(NewCheckCommand(opts))
	cmd.AddCommand(NewEvalCommand(opts))
	cmd.AddCommand(NewSchemaCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// setup installs the logger and merges the project file under the flags.
func (o *RootOptions) setup(cmd *cobra.Command) error {
	level := slog.LevelInfo
	if o.Verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})))

	var err error
	if o.ConfigPath != "" {
		o.Config, err = LoadConfig(o.ConfigPath)
	} else {
		var wd string
		if wd, err = os.Getwd(); err == nil {
			var path string
			path, o.Config, err = FindConfig(wd)
			if path != "" {
				slog.Debug("config loaded", "path", path)
			}
		}
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "invalid config", &LoadError{Code: ErrCodeConfig, Message: err.Error()})
	}

	if o.Config != nil {
		flags := cmd.Flags()
		if !flags.Changed("format") && o.Config.Format != "" {
			o.Format = o.Config.Format
		}
		if !flags.Changed("schema") && o.Config.Schema != "" {
			o.SchemaDir = o.Config.Schema
		}
	}

	if !isValidFormat(o.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", o.Format, ValidFormats))
	}
	return nil
}

// schema returns the schema directory, which must be configured.
func (o *RootOptions) schema() (string, error) {
	if o.SchemaDir == "" {
		return "", &LoadError{Code: ErrCodeNotFound, Message: "no schema: use --schema or set schema in " + ConfigFileName}
	}
	return o.SchemaDir, nil
}

// requireSymbols resolves the symbol strictness; lenient always wins.
func (o *RootOptions) requireSymbols(lenient bool) bool {
	if lenient {
		return false
	}
	if o.Config != nil && o.Config.RequireSymbols != nil {
		return *o.Config.RequireSymbols
	}
	return true
}

func (o *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    o.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   o.Verbose,
	}
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	return slices.Contains(ValidFormats, format)
}
