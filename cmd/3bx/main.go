// Package main implements the 3BX compiler CLI.
package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/threebx-lang/threebx/pkg/compiler"
	"github.com/threebx-lang/threebx/pkg/config"
	"github.com/threebx-lang/threebx/pkg/errors"
	"github.com/threebx-lang/threebx/pkg/pattern"
	"github.com/threebx-lang/threebx/pkg/source"
	"github.com/threebx-lang/threebx/pkg/ui"
)

const version = "0.1.0-alpha"

func main() {
	rootCmd := &cobra.Command{
		Use:          "3bx",
		Short:        "3BX - a pattern-oriented natural-language compiler",
		Version:      version,
		SilenceUsage: true,
	}

	rootCmd.AddCommand(checkCmd(), irCmd(), patternsCmd(), versionCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the 3bx version",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println(ui.Rule("3bx"))
			fmt.Printf("version %s\n", version)
		},
	}
}

// loadConfig resolves the layered configuration for a compile
// invocation: defaults, user config, project config, then the command's
// own flag overrides.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	precedence, _ := cmd.Flags().GetString("precedence")
	maxIter, _ := cmd.Flags().GetInt("max-iterations")
	format, _ := cmd.Flags().GetString("format")

	overrides := &config.Config{
		Resolver: config.ResolverConfig{
			MaxIterations: maxIter,
			Precedence:    config.PrecedenceMode(precedence),
		},
		Diagnostics: config.DiagnosticsConfig{Format: config.DiagnosticsFormat(format)},
	}
	return config.Load(".", overrides)
}

func addCompileFlags(cmd *cobra.Command) {
	cmd.Flags().String("precedence", "", "precedence mode: off or dag (default from config)")
	cmd.Flags().Int("max-iterations", 0, "resolver iteration bound (default from config)")
	cmd.Flags().String("format", "", "diagnostics format: pretty or json (default from config)")
}

func checkCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check <file.3bx>",
		Short: "Compile a source file and report diagnostics",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			res := compiler.Compile(diskFS{}, cfg, args[0])
			printDiagnostics(cfg, res)
			if cfg.Diagnostics.Format == config.FormatPretty {
				ui.PrintSummary(os.Stdout, res.Bus)
			}
			if !res.Succeeded() {
				os.Exit(1)
			}
			return nil
		},
	}
	addCompileFlags(cmd)
	return cmd
}

// printDiagnostics renders the bus either as framed source snippets for
// humans or as a JSON array for tooling.
func printDiagnostics(cfg *config.Config, res *compiler.Result) {
	if cfg.Diagnostics.Format == config.FormatJSON {
		_ = ui.PrintJSON(os.Stdout, res.Bus)
		return
	}
	errors.NewRenderer(diskFS{}).Render(os.Stdout, res.Bus)
}

func irCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ir <file.3bx>",
		Short: "Compile and print the typed IR",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			res := compiler.Compile(diskFS{}, cfg, args[0])
			printDiagnostics(cfg, res)
			if !res.Succeeded() {
				os.Exit(1)
			}
			return printIR(res)
		},
	}
	addCompileFlags(cmd)
	return cmd
}

func patternsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "patterns <file.3bx>",
		Short: "Compile and list every declared pattern definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			res := compiler.Compile(diskFS{}, cfg, args[0])
			ui.PrintDiagnostics(os.Stdout, res.Bus)
			for _, d := range res.ResolvedPatterns() {
				fmt.Printf("#%-4d %-10s %s\n", d.ID, d.Kind, headerString(d))
			}
			return nil
		},
	}
	addCompileFlags(cmd)
	return cmd
}

func headerString(d *pattern.Definition) string {
	s := ""
	for i, el := range d.Header {
		if i > 0 {
			s += " "
		}
		s += el.String()
	}
	return s
}

func printIR(res *compiler.Result) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(res.IR)
}

// diskFS is the real file-system collaborator; the LSP server uses
// source.Overlay instead so open buffers shadow disk contents.
type diskFS struct{}

func (diskFS) Read(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", source.ErrNotFound, path)
	}
	return data, nil
}

var _ source.FileSystem = diskFS{}
