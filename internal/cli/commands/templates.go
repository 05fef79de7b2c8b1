package commands

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gopkg.in/yaml.v3"

	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/cli/config"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/macro"
	"github.com/heterosexualgirlfriend/pgtoolsservice/internal/templating"
)

// TemplatesOptions holds options for the templates command.
type TemplatesOptions struct {
	ServerVersion int
	Output        string
	Macros        bool
}

// templatesReport is what the templates command prints.
type templatesReport struct {
	Source        string                   `yaml:"source"`
	ServerVersion int                      `yaml:"server_version,omitempty"`
	Categories    []templateCategory       `yaml:"categories"`
	Macros        []*macro.ParsedNamespace `yaml:"macros,omitempty"`
}

type templateCategory struct {
	Name     string   `yaml:"name"`
	Versions []string `yaml:"versions"`
	Resolved string   `yaml:"resolved,omitempty"`
	Error    string   `yaml:"error,omitempty"`
}

// NewTemplatesCommand creates the templates command.
func NewTemplatesCommand() *cobra.Command {
	opts := &TemplatesOptions{}

	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List script template categories and versions",
		Long: `List the categories of the template bundle and their version directories.

Given --server-version (server_version_num form, e.g. 150004), also show
which version directory each category resolves to for that server.`,
		Example: `  # List the embedded bundle
  pgtoolsservice templates

  # Show what a PostgreSQL 12.3 server would use, as YAML
  pgtoolsservice templates --server-version 120003 -o yaml

  # Include the macro reference
  pgtoolsservice templates --macros`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTemplates(cmd, opts)
		},
	}

	cmd.Flags().IntVar(&opts.ServerVersion, "server-version", 0, "Resolve each category for this server_version_num")
	cmd.Flags().StringVarP(&opts.Output, "output", "o", "table", "Output format (table|yaml)")
	cmd.Flags().BoolVar(&opts.Macros, "macros", false, "Include the macro reference")
	_ = cmd.RegisterFlagCompletionFunc("output", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{"table", "yaml"}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runTemplates(cmd *cobra.Command, opts *TemplatesOptions) error {
	if opts.Output != "table" && opts.Output != "yaml" {
		return fmt.Errorf("output must be one of table, yaml; got %q", opts.Output)
	}
	if opts.ServerVersion < 0 {
		return fmt.Errorf("server-version must be positive, got %d", opts.ServerVersion)
	}

	ctx := cmd.Context()
	cfg := config.GetConfig(ctx)
	if err := cfg.ValidateDirectories(); err != nil {
		return err
	}
	resolver, err := NewResolver(cfg, config.GetLogger(ctx))
	if err != nil {
		return err
	}

	report, err := buildTemplatesReport(resolver, opts)
	if err != nil {
		return err
	}
	report.Source = "embedded"
	if cfg.TemplatesDir != "" {
		report.Source = cfg.TemplatesDir
	}

	if opts.Output == "yaml" {
		enc := yaml.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	}
	renderTemplatesTable(cmd.OutOrStdout(), report)
	return nil
}

func buildTemplatesReport(resolver *templating.Resolver, opts *TemplatesOptions) (*templatesReport, error) {
	categories, err := resolver.Categories()
	if err != nil {
		return nil, err
	}

	report := &templatesReport{ServerVersion: opts.ServerVersion}
	for _, name := range categories {
		versions, err := resolver.Versions(name)
		if err != nil {
			return nil, err
		}
		c := templateCategory{Name: name, Versions: versions}
		if opts.ServerVersion > 0 {
			h, err := resolver.Resolve(name, opts.ServerVersion)
			var incompatible *templating.NoCompatibleTemplateError
			switch {
			case errors.As(err, &incompatible):
				c.Error = err.Error()
			case err != nil:
				return nil, err
			default:
				c.Resolved = h.Version
			}
		}
		report.Categories = append(report.Categories, c)
	}

	if opts.Macros {
		report.Macros, err = resolver.MacroDocs()
		if err != nil {
			return nil, err
		}
	}
	return report, nil
}

func renderTemplatesTable(w io.Writer, report *templatesReport) {
	_, _ = fmt.Fprintf(w, "Templates: %s\n", report.Source)

	titleCaser := cases.Title(language.English)
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)

	header := table.Row{"Category", "Name", "Versions"}
	if report.ServerVersion > 0 {
		header = append(header, fmt.Sprintf("Resolved for %s", templating.FormatVersionNum(report.ServerVersion)))
	}
	t.AppendHeader(header)

	for _, c := range report.Categories {
		row := table.Row{titleCaser.String(strings.ReplaceAll(c.Name, "_", " ")), c.Name, strings.Join(c.Versions, ", ")}
		if report.ServerVersion > 0 {
			resolved := c.Resolved
			if c.Error != "" {
				resolved = "none"
			}
			row = append(row, resolved)
		}
		t.AppendRow(row)
	}
	t.Render()

	if len(report.Macros) == 0 {
		return
	}

	m := table.NewWriter()
	m.SetOutputMirror(w)
	m.SetStyle(table.StyleLight)
	m.AppendHeader(table.Row{"Macro", "Arguments", "Description"})
	for _, ns := range report.Macros {
		for _, fn := range ns.Functions {
			doc, _, _ := strings.Cut(strings.TrimSpace(fn.Docstring), "\n")
			m.AppendRow(table.Row{ns.Name + "." + fn.Name, strings.Join(fn.Args, ", "), doc})
		}
	}
	m.Render()
}
