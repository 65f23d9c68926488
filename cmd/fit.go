package cmd

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/xzh19980906/inference/infer"
	"github.com/xzh19980906/inference/infer/template"
)

var (
	// CLI flags for the fit command
	dataPath   string   // Path to the observed dataset YAML
	guessFlags []string // Initial guess entries, name=value
	showView   bool     // Print the model structure before fitting
)

// datasetFile is the on-disk YAML layout of an observed dataset.
type datasetFile struct {
	Events [][]float64 `yaml:"events"`
}

// loadDataset reads an observed dataset from a YAML file.
func loadDataset(path string) (*infer.Dataset, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading dataset: %w", err)
	}
	var df datasetFile
	if err := yaml.Unmarshal(raw, &df); err != nil {
		return nil, fmt.Errorf("parsing dataset %s: %w", path, err)
	}
	return infer.NewDataset(df.Events), nil
}

// buildModel loads the model spec and assembles the model against the
// configured template directory.
func buildModel() (*infer.Model, error) {
	if modelPath == "" {
		return nil, fmt.Errorf("no model spec provided (--model)")
	}
	spec, err := infer.LoadModelSpec(modelPath)
	if err != nil {
		return nil, err
	}
	return spec.Build(template.NewStore(templatesDir))
}

// fitCmd runs the unconditional maximum-likelihood fit on an observed dataset
var fitCmd = &cobra.Command{
	Use:   "fit",
	Short: "Fit the model to an observed dataset and print the MLE",
	Run: func(cmd *cobra.Command, args []string) {
		model, err := buildModel()
		if err != nil {
			logrus.Fatalf("building model: %v", err)
		}
		if showView {
			fmt.Println(model.View())
		}

		ds, err := loadDataset(dataPath)
		if err != nil {
			logrus.Fatalf("loading data: %v", err)
		}
		model.SetData(ds)
		logrus.Infof("Fitting %d events, parameters needed: %v", ds.Len(), model.ParamNeeded())

		guess, err := parseParams(guessFlags)
		if err != nil {
			logrus.Fatalf("parsing guess: %v", err)
		}

		fit, err := model.FitGlobal(guess)
		if err != nil {
			logrus.Fatalf("global fit: %v", err)
		}

		out, err := yaml.Marshal(map[string]interface{}{
			"log_likelihood":   fit.LogLikelihood,
			"bestfit":          fit.Params,
			"func_evaluations": fit.FuncEvaluations,
		})
		if err != nil {
			logrus.Fatalf("encoding result: %v", err)
		}
		fmt.Print(string(out))
	},
}

// init sets up fit command flags
func init() {
	fitCmd.Flags().StringVar(&dataPath, "data", "", "Path to the observed dataset YAML")
	fitCmd.Flags().StringArrayVar(&guessFlags, "guess", nil, "Initial parameter guess, name=value (repeatable)")
	fitCmd.Flags().BoolVar(&showView, "view", false, "Print the model term structure before fitting")

	rootCmd.AddCommand(fitCmd)
}
