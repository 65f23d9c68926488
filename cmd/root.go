package cmd

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/xzh19980906/inference/infer"
)

var (
	// Shared CLI flags
	logLevel     string // Log verbosity level
	modelPath    string // Path to the model spec YAML
	templatesDir string // Base directory for density templates
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "inference",
	Short: "Profile-likelihood inference engine for template-based searches",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := logrus.ParseLevel(logLevel)
		if err != nil {
			logrus.Fatalf("Invalid log level: %s", logLevel)
		}
		logrus.SetLevel(level)
	},
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// parseParams converts repeated "name=value" flag entries into a parameter
// vector.
func parseParams(entries []string) (infer.Params, error) {
	p := make(infer.Params, len(entries))
	for _, entry := range entries {
		name, raw, ok := strings.Cut(entry, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("malformed parameter %q, want name=value", entry)
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, fmt.Errorf("parameter %q: %w", name, err)
		}
		p[name] = v
	}
	return p, nil
}

// init sets up persistent CLI flags
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "info", "Log level (trace, debug, info, warn, error, fatal, panic)")
	rootCmd.PersistentFlags().StringVar(&modelPath, "model", "", "Path to the model spec YAML")
	rootCmd.PersistentFlags().StringVar(&templatesDir, "templates", ".", "Base directory holding density template files")
}
