// Command chorus runs the multi-model query gateway.
//
// Subcommands:
//
//	chorus serve   [--config path]          run the HTTP gateway
//	chorus query   -m m1 -m m2 "prompt"     one-shot fan-out from the terminal
//	chorus models  [--free]                 print the model catalog
//	chorus version [-o text|json|short]     print the build version
//
// Configuration is read from --config, CHORUS_CONFIG, ./config.yaml or
// /etc/chorus/config.yaml, then overridden by CHORUS_* environment
// variables. Provider credentials default to OPENAI_API_KEY,
// ANTHROPIC_API_KEY, GEMINI_API_KEY and OPENROUTER_API_KEY.
package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/rhuss/chorus/pkg/config"
	"github.com/rhuss/chorus/pkg/debug"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var configPath string

	root := &cobra.Command{
		Use:          "chorus",
		Short:        "Ask several language models the same question at once",
		SilenceUsage: true,
	}
	root.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to config.yaml")

	loadConfig := func() (*config.Config, error) {
		cfg, err := config.Load(configPath)
		if err != nil {
			return nil, err
		}
		debug.Init(debug.Options{
			Categories: cfg.Logging.Debug,
			Level:      cfg.Logging.Level,
			Format:     cfg.Logging.Format,
		})
		return cfg, nil
	}

	root.AddCommand(
		newServeCmd(loadConfig),
		newQueryCmd(loadConfig),
		newModelsCmd(loadConfig),
		newVersionCmd(),
	)
	return root
}

// configLoader loads and applies the layered configuration.
type configLoader func() (*config.Config, error)
