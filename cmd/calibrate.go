package cmd

import (
	"fmt"
	"math"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xzh19980906/inference/infer/calib"
)

var (
	// CLI flags for the calibrate command
	toys             int      // Number of toy datasets
	workers          int      // Parallel workers
	seed             int64    // Master seed for toy generation
	trueParamFlags   []string // Generative truth entries, name=value
	fixedFlags       []string // Hypothesis point entries, name=value
	profileGuessList []string // Profiled-parameter guess entries, name=value
	globalGuessList  []string // Global fit guess entries, name=value
	observed         float64  // Observed statistic for an empirical p-value
)

// calibrateCmd builds the empirical null distribution of the test statistic
var calibrateCmd = &cobra.Command{
	Use:   "calibrate",
	Short: "Run a toy-MC calibration batch for one hypothesis point",
	Run: func(cmd *cobra.Command, args []string) {
		trueParams, err := parseParams(trueParamFlags)
		if err != nil {
			logrus.Fatalf("parsing --true: %v", err)
		}
		fixed, err := parseParams(fixedFlags)
		if err != nil {
			logrus.Fatalf("parsing --fixed: %v", err)
		}
		profileGuess, err := parseParams(profileGuessList)
		if err != nil {
			logrus.Fatalf("parsing --profile-guess: %v", err)
		}
		globalGuess, err := parseParams(globalGuessList)
		if err != nil {
			logrus.Fatalf("parsing --global-guess: %v", err)
		}

		cfg := calib.Config{
			Toys:         toys,
			Workers:      workers,
			Seed:         seed,
			TrueParams:   trueParams,
			Fixed:        fixed,
			ProfileGuess: profileGuess,
			GlobalGuess:  globalGuess,
		}

		logrus.Infof("Starting calibration: %d toys on %d workers, seed=%d, hypothesis %v",
			toys, workers, seed, fixed)
		startTime := time.Now()

		result, err := calib.Run(cmd.Context(), cfg, buildModel)
		if err != nil {
			logrus.Fatalf("calibration: %v", err)
		}

		summary, err := calib.Summarize(result)
		if err != nil {
			logrus.Fatalf("summarizing: %v", err)
		}

		report := map[string]interface{}{"summary": summary}
		if !math.IsNaN(observed) {
			report["observed"] = observed
			report["p_value"] = result.PValue(observed)
			report["wilks_p_value"] = calib.WilksPValue(observed, len(fixed))
		}

		out, err := yaml.Marshal(report)
		if err != nil {
			logrus.Fatalf("encoding report: %v", err)
		}
		fmt.Print(string(out))
		logrus.Infof("Calibration complete in %v.", time.Since(startTime).Round(time.Millisecond))
	},
}

// init sets up calibrate command flags
func init() {
	calibrateCmd.Flags().IntVar(&toys, "toys", 1000, "Number of toy datasets")
	calibrateCmd.Flags().IntVar(&workers, "workers", 1, "Parallel calibration workers")
	calibrateCmd.Flags().Int64Var(&seed, "seed", 42, "Master seed for toy generation")
	calibrateCmd.Flags().StringArrayVar(&trueParamFlags, "true", nil, "True parameter for toy generation, name=value (repeatable)")
	calibrateCmd.Flags().StringArrayVar(&fixedFlags, "fixed", nil, "Fixed hypothesis parameter, name=value (repeatable)")
	calibrateCmd.Flags().StringArrayVar(&profileGuessList, "profile-guess", nil, "Initial guess for a profiled parameter, name=value (repeatable)")
	calibrateCmd.Flags().StringArrayVar(&globalGuessList, "global-guess", nil, "Initial guess for the global fit, name=value (repeatable)")
	calibrateCmd.Flags().Float64Var(&observed, "observed", math.NaN(), "Observed statistic; reports its empirical p-value")

	rootCmd.AddCommand(calibrateCmd)
}
