package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/thesyncim/uiverify/pkg/uiverify"
	"github.com/thesyncim/uiverify/pkg/uiverify/engine"
	"github.com/thesyncim/uiverify/pkg/uiverify/flows"
)

// headlessEnv overrides Config.Headless when set to a boolean.
const headlessEnv = "UIVERIFY_HEADLESS"

type options struct {
	configPath string
	url        string
	engine     string
	out        string
	headless   bool
	width      int
	height     int
	json       bool
	verbose    bool
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	var opts options

	root := &cobra.Command{
		Use:           "uiverify",
		Short:         "Verify the settings panel of a running application",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "YAML config file")
	pf.StringVar(&opts.url, "url", "", "application base URL")
	pf.StringVar(&opts.engine, "engine", "", "browser engine: rod, chromedp or static")
	pf.StringVarP(&opts.out, "out", "o", "", "artifact directory")
	pf.BoolVar(&opts.headless, "headless", true, "run the browser headless (env "+headlessEnv+")")
	pf.IntVar(&opts.width, "width", 0, "viewport width for flows without their own")
	pf.IntVar(&opts.height, "height", 0, "viewport height for flows without their own")
	pf.BoolVar(&opts.json, "json", false, "write <flow>.json results to the artifact directory")
	pf.BoolVarP(&opts.verbose, "verbose", "v", false, "debug logging")

	for _, f := range append(flows.All(), flows.Markup()) {
		root.AddCommand(flowCommand(&opts, f, stdout, stderr))
	}
	root.AddCommand(&cobra.Command{
		Use:   "all",
		Short: "Run every interactive flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFlows(cmd, &opts, flows.All(), stdout, stderr)
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List flow names",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			for _, f := range append(flows.All(), flows.Markup()) {
				fmt.Fprintln(cmd.OutOrStdout(), f.Name)
			}
		},
	})
	return root
}

func flowCommand(opts *options, f uiverify.Flow, stdout, stderr io.Writer) *cobra.Command {
	cmd := &cobra.Command{
		Use:   f.Name,
		Short: "Run the " + f.Name + " flow",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runFlows(cmd, opts, []uiverify.Flow{f}, stdout, stderr)
		},
	}
	if f.Name == "settings-accessibility" {
		cmd.Aliases = []string{"settings"}
	}
	return cmd
}

// loadConfig layers defaults, the config file, the environment and flags,
// in increasing precedence.
func loadConfig(cmd *cobra.Command, opts *options) (uiverify.Config, error) {
	cfg := uiverify.DefaultConfig()
	if opts.configPath != "" {
		var err error
		if cfg, err = uiverify.LoadConfig(opts.configPath); err != nil {
			return cfg, err
		}
	}
	if v, ok := os.LookupEnv(headlessEnv); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return cfg, fmt.Errorf("%s=%q is not a boolean", headlessEnv, v)
		}
		cfg.Headless = b
	}

	flags := cmd.Flags()
	if flags.Changed("url") {
		cfg.BaseURL = opts.url
	}
	if flags.Changed("engine") {
		cfg.Engine = opts.engine
	}
	if flags.Changed("out") {
		cfg.OutputDir = opts.out
	}
	if flags.Changed("headless") {
		cfg.Headless = opts.headless
	}
	if flags.Changed("width") {
		cfg.Viewport.Width = opts.width
	}
	if flags.Changed("height") {
		cfg.Viewport.Height = opts.height
	}
	if !engine.Valid(cfg.Engine) {
		return cfg, fmt.Errorf("unknown engine %q (want one of %v)", cfg.Engine, engine.Names())
	}
	return cfg, cfg.Validate()
}

// runFlows runs each flow in its own session and returns an error if any
// of them failed. A failing flow does not stop the ones after it.
func runFlows(cmd *cobra.Command, opts *options, fs []uiverify.Flow, stdout, stderr io.Writer) error {
	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: level}))

	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}
	launch, err := engine.Launcher(cfg)
	if err != nil {
		return err
	}
	rep := uiverify.NewReporter(cfg.OutputDir, stdout, logger)

	var failed []string
	for _, f := range fs {
		res, err := uiverify.Run(cmd.Context(), launch, cfg, f, rep, logger)
		if opts.json {
			path, jerr := rep.WriteJSON(res)
			if jerr != nil {
				logger.Error("failed to write result", "flow", f.Name, "err", jerr)
			} else {
				logger.Info("result saved", "flow", f.Name, "path", path)
			}
		}
		if err != nil {
			failed = append(failed, f.Name)
		}
		if cmd.Context().Err() != nil {
			break
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("%d of %d flows failed: %v", len(failed), len(fs), failed)
	}
	return nil
}
