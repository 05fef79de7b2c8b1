// Package cli provides the command-line interface for pgtoolsservice.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/cli/commands"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/cli/config"
)

var cfgFile string

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// NewRootCmd creates and returns the root command. Without a subcommand it
// serves JSON-RPC on stdin/stdout.
func NewRootCmd() *cobra.Command {
	var closeLog func() error

	rootCmd := &cobra.Command{
		Use:   "pgtoolsservice",
		Short: "PostgreSQL tools service",
		Long: `pgtoolsservice is a PostgreSQL tools backend for editors and IDEs.

It speaks JSON-RPC over stdin/stdout and serves the object explorer
(browsing servers, databases, schemas and their objects) and DDL scripting
of the objects it finds.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			// Skip config loading for help and completion commands
			if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "__complete" {
				return nil
			}

			cfg, err := config.Load(cfgFile, cmd.Root().PersistentFlags())
			if err != nil {
				return err
			}
			logger, closeFn, err := newLogger(cfg, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			closeLog = closeFn

			if path := config.GetConfigFileUsed(); path != "" {
				logger.Debug("loaded config file", "path", path)
			}

			ctx := context.WithValue(cmd.Context(), config.ConfigKey(), cfg)
			ctx = context.WithValue(ctx, config.LoggerKey(), logger)
			cmd.SetContext(ctx)
			return nil
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			if closeLog == nil {
				return nil
			}
			return closeLog()
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return commands.RunServe(cmd, Version)
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
` + fmt.Sprintf("commit %s, built %s\n", GitCommit, BuildDate))

	// Global persistent flags; names match config keys with dashes.
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "config file (default: ./pgtoolsservice.yaml)")
	pf.String("log-level", "", "Log level (debug|info|warn|error)")
	pf.String("log-format", "", "Log format (auto|text|json)")
	pf.String("log-file", "", "Write logs to this file instead of stderr")
	pf.Duration("connect-timeout", config.DefaultConnectTimeout, "Default connect timeout")
	pf.Duration("query-timeout", config.DefaultQueryTimeout, "Catalog query timeout")
	pf.String("application-name", "", "application_name reported to PostgreSQL")
	pf.String("templates-dir", "", "Load script templates from this directory instead of the embedded ones")
	pf.Bool("watch-templates", false, "Reload templates when files in --templates-dir change")
	pf.String("debug-addr", "", "Serve debug endpoints on this address (e.g. 127.0.0.1:6060)")
	pf.Int("outbound-queue", config.DefaultOutboundQueue, "Capacity of the outbound message queue")

	_ = rootCmd.RegisterFlagCompletionFunc("log-level", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"debug", "info", "warn", "error"}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.RegisterFlagCompletionFunc("log-format", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{config.LogFormatAuto, config.LogFormatText, config.LogFormatJSON}, cobra.ShellCompDirectiveNoFileComp
	})
	_ = rootCmd.MarkPersistentFlagDirname("templates-dir")

	rootCmd.AddCommand(commands.NewServeCommand(Version))
	rootCmd.AddCommand(commands.NewTemplatesCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for pgtoolsservice.

To load completions:

Bash:
  $ source <(pgtoolsservice completion bash)

Zsh:
  $ pgtoolsservice completion zsh > "${fpath[1]}/_pgtoolsservice"

Fish:
  $ pgtoolsservice completion fish | source

PowerShell:
  PS> pgtoolsservice completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
