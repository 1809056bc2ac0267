package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/menta2k/meishi-analyzer"
	"github.com/menta2k/meishi-analyzer/internal/app"
	"github.com/menta2k/meishi-analyzer/internal/config"
	"github.com/menta2k/meishi-analyzer/internal/server"
	"github.com/menta2k/meishi-analyzer/internal/utils"
	"github.com/menta2k/meishi-analyzer/pkg/inference"
	"github.com/menta2k/meishi-analyzer/pkg/logo"
	"github.com/menta2k/meishi-analyzer/pkg/types"
)

type cli struct {
	configPath string
	outPath    string
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:           "meishi",
		Short:         "Business card analysis: fields, text and logos from PDFs and photos",
		Version:       meishi.GetVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&c.configPath, "config", config.GetConfigPath(), "config file (YAML or JSON)")
	root.PersistentFlags().StringVarP(&c.outPath, "out", "o", "", "write JSON output to this file instead of stdout")

	root.AddCommand(
		&cobra.Command{
			Use:   "analyze <file|dir>",
			Short: "Run the full pipeline on a PDF or card image, or on every card in a directory",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runAnalyze,
		},
		&cobra.Command{
			Use:   "logos <image>",
			Short: "Detect logo regions locally and print their SVG outlines",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runLogos,
		},
		&cobra.Command{
			Use:   "infer <text-file>",
			Short: "Infer card fields from raw card text ('-' reads stdin)",
			Args:  cobra.ExactArgs(1),
			RunE:  c.runInfer,
		},
		&cobra.Command{
			Use:   "serve",
			Short: "Serve the HTTP API",
			Args:  cobra.NoArgs,
			RunE:  c.runServe,
		},
	)
	return root
}

func (c *cli) loadConfig() (*config.Config, error) {
	return config.Load(c.configPath)
}

func (c *cli) runAnalyze(cmd *cobra.Command, args []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)

	a, err := app.New(cmd.Context(), cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	if utils.DirExists(args[0]) {
		return c.analyzeDir(cmd, a, args[0])
	}
	if !utils.FileExists(args[0]) {
		return fmt.Errorf("file not found: %s", args[0])
	}
	result, err := a.Analyzer.AnalyzeFile(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	return c.writeJSON(cmd.OutOrStdout(), result)
}

// analyzeDir writes one <name>_card.json per card found under dir. Results go
// to the --out directory, or next to each card when --out is empty.
func (c *cli) analyzeDir(cmd *cobra.Command, a *app.App, dir string) error {
	files, err := utils.ListCardFiles(dir)
	if err != nil {
		return fmt.Errorf("failed to list cards: %w", err)
	}
	if len(files) == 0 {
		return fmt.Errorf("no card files in %s", dir)
	}
	if c.outPath != "" {
		if err := utils.EnsureDir(c.outPath); err != nil {
			return fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	failed := 0
	for _, path := range files {
		result, err := a.Analyzer.AnalyzeFile(cmd.Context(), path)
		if err != nil {
			failed++
			a.Logger.Error("cli.analyze_failed", "file", path, "error", err)
			continue
		}

		outDir := c.outPath
		if outDir == "" {
			outDir = filepath.Dir(path)
		}
		target := utils.GenerateOutputFilename(path, outDir, "_card", "json")
		if err := writeJSONFile(target, result); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), target)
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d cards failed", failed, len(files))
	}
	return nil
}

func (c *cli) runLogos(cmd *cobra.Command, args []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("failed to read image: %w", err)
	}
	if mt := utils.DetectMediaType(args[0], data); !mt.IsRaster() {
		return fmt.Errorf("logo detection needs a PNG, JPEG or WEBP image, got %q", mt)
	}

	detector := logo.NewWithConfig(app.LogoConfig(cfg.Logo)).WithLogger(cfg.NewLogger(os.Stderr))
	return c.writeJSON(cmd.OutOrStdout(), detector.DetectLogos(data))
}

func (c *cli) runInfer(cmd *cobra.Command, args []string) error {
	var (
		text []byte
		err  error
	)
	if args[0] == "-" {
		text, err = io.ReadAll(cmd.InOrStdin())
	} else {
		text, err = os.ReadFile(args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to read text: %w", err)
	}
	return c.writeJSON(cmd.OutOrStdout(), inference.Infer(string(text), types.CardFields{}))
}

func (c *cli) runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := c.loadConfig()
	if err != nil {
		return err
	}
	logger := cfg.NewLogger(os.Stderr)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	srv := server.New(a.Analyzer, server.Config{
		Addr:         cfg.Server.Addr,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		MaxBodyBytes: cfg.Pipeline.MaxFileSize,
	}, logger)
	return srv.Run(ctx)
}

// writeJSON prints v indented to --out when set, otherwise to w
func (c *cli) writeJSON(w io.Writer, v any) error {
	if c.outPath != "" {
		return writeJSONFile(c.outPath, v)
	}
	data, err := encodeJSON(v)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func writeJSONFile(path string, v any) error {
	data, err := encodeJSON(v)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func encodeJSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode output: %w", err)
	}
	return append(data, '\n'), nil
}
