package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"cbfusion/pkg"
	"cbfusion/pkg/config"
	"cbfusion/pkg/metrics"
	"cbfusion/pkg/model/transformer"
)

func TrainCommand() *cobra.Command {
	var trainFile string
	var textFile string
	var outputFile string
	var targetColumn string
	var configFile string
	var textEncoder string
	var metricsFile string
	var trainingParameters pkg.TrainingParameters

	var cmd = &cobra.Command{
		Use:   "train -i features.csv --text text.jsonl -o outputFile -t targetColumn",
		Short: "Trains a new model on the provided training data and saves the trained model",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := config.Load(configFile)
			if err != nil {
				return err
			}
			params := pkg.TrainingParameters{
				BatchSize:      settings.Training.BatchSize,
				NumEpochs:      settings.Training.Epochs,
				LearningRate:   settings.Training.LearningRate,
				GradientClip:   settings.Training.GradientClip,
				Holdout:        settings.Training.Holdout,
				ReportInterval: settings.Training.ReportInterval,
				RndSeed:        settings.Seed,
				InputDropout:   settings.Training.InputDropout,
			}
			flags := cmd.Flags()
			if flags.Changed("batch-size") {
				params.BatchSize = trainingParameters.BatchSize
			}
			if flags.Changed("num-epochs") {
				params.NumEpochs = trainingParameters.NumEpochs
			}
			if flags.Changed("learning-rate") {
				params.LearningRate = trainingParameters.LearningRate
			}
			if flags.Changed("report-interval") {
				params.ReportInterval = trainingParameters.ReportInterval
			}
			if flags.Changed("random-seed") {
				params.RndSeed = trainingParameters.RndSeed
			}
			if flags.Changed("holdout") {
				params.Holdout = trainingParameters.Holdout
			}
			if flags.Changed("input-dropout-probability") {
				params.InputDropout = trainingParameters.InputDropout
			}
			if textEncoder == "" {
				textEncoder = settings.TextEncoder
			}
			var provider transformer.Provider
			if textEncoder != "" {
				provider = transformer.FromCheckpoint(textEncoder)
			}

			m := metrics.New()
			if err := pkg.Train(trainFile, textFile, outputFile, targetColumn, settings.Model, provider, params, m); err != nil {
				return err
			}
			return writeMetrics(m, metricsFile)
		},
	}

	cmd.Flags().StringVarP(&trainFile, "train-file", "i", "", "name of train file")
	cmd.Flags().StringVarP(&textFile, "text", "", "", "name of the JSON lines file holding the tokenized texts")
	cmd.Flags().StringVarP(&outputFile, "output-file", "o", "", "name of the file to save model to.")
	cmd.Flags().StringVarP(&targetColumn, "target-column", "t", "", "target column")
	cmd.Flags().StringVarP(&configFile, "config", "c", "", "YAML model and training configuration")
	cmd.Flags().StringVarP(&textEncoder, "text-encoder", "", "", "pretrained text encoder checkpoint")
	cmd.Flags().StringVarP(&metricsFile, "metrics-file", "", "", "write Prometheus metrics to this textfile")
	cmd.Flags().IntVarP(&trainingParameters.BatchSize, "batch-size", "b", 16, "batch size")
	cmd.Flags().Float64VarP(&trainingParameters.LearningRate, "learning-rate", "l", 0.001, "learning rate")
	cmd.Flags().IntVarP(&trainingParameters.ReportInterval, "report-interval", "r", 10, "loss report interval")
	cmd.Flags().IntVarP(&trainingParameters.NumEpochs, "num-epochs", "n", 10, "number of epochs to train")
	cmd.Flags().Uint64VarP(&trainingParameters.RndSeed, "random-seed", "x", 42, "random seed")
	cmd.Flags().Float64VarP(&trainingParameters.Holdout, "holdout", "", 0.1, "fraction of the data held out for validation")
	cmd.Flags().Float64VarP(&trainingParameters.InputDropout, "input-dropout-probability", "", 0.0, "probability of dropping a lag value")

	_ = cmd.MarkFlagRequired("train-file")
	_ = cmd.MarkFlagRequired("output-file")
	_ = cmd.MarkFlagRequired("target-column")

	return cmd
}

func TestCommand() *cobra.Command {
	var params pkg.TestParameters
	var metricsFile string

	var cmd = &cobra.Command{
		Use:   "test -m modelFile -i features.csv --text text.jsonl [-o outputFile] [--output-db predictions.db]",
		Short: "Runs the provided model on the specified data input and optionally writes the predictions",
		Args:  cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m := metrics.New()
			if err := pkg.Test(params, m); err != nil {
				return err
			}
			return writeMetrics(m, metricsFile)
		},
	}

	cmd.Flags().StringVarP(&params.ModelFile, "model", "m", "", "name of model to test")
	cmd.Flags().StringVarP(&params.DataFile, "input", "i", "", "name of data input file")
	cmd.Flags().StringVarP(&params.TextFile, "text", "", "", "name of the JSON lines file holding the tokenized texts")
	cmd.Flags().StringVarP(&params.OutputFile, "output", "o", "", "name of output file (optional)")
	cmd.Flags().StringVarP(&params.OutputDB, "output-db", "", "", "BoltDB file to store the predictions in (optional)")
	cmd.Flags().StringVarP(&params.Run, "run", "", "", "name of the run the stored predictions belong to")
	cmd.Flags().StringVarP(&metricsFile, "metrics-file", "", "", "write Prometheus metrics to this textfile")

	_ = cmd.MarkFlagRequired("model")
	_ = cmd.MarkFlagRequired("input")

	return cmd
}

func writeMetrics(m *metrics.Metrics, path string) error {
	if path == "" {
		return nil
	}
	return m.WriteTextfile(path)
}

var logLevel string
var logFormat string
var envFile string

func main() {
	Main := &cobra.Command{Use: "cbfusion", PersistentPreRunE: setup}

	Main.PersistentFlags().StringVarP(&logLevel, "log-level", "", "info", "Logging level: info error or debug")
	Main.PersistentFlags().StringVarP(&logFormat, "log-format", "", "pretty", "Logging format: pretty or json")
	Main.PersistentFlags().StringVarP(&envFile, "env-file", "", ".env", "file with environment overrides")

	Main.AddCommand(TrainCommand())
	Main.AddCommand(TestCommand())

	if err := Main.Execute(); err != nil {
		log.Error().Err(err).Msg("")
		os.Exit(1)
	}
}

func setup(cmd *cobra.Command, args []string) error {
	if err := setupLogging(logLevel, logFormat); err != nil {
		return err
	}
	return config.LoadEnvFiles(envFile)
}

func setupLogging(level, format string) error {
	switch level {
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	default:
		return fmt.Errorf("invalid logging level %q", level)
	}

	switch format {
	case "pretty":
		setupPrettyLogging()
	case "json":
	default:
		return fmt.Errorf("invalid log format %q", format)
	}
	return nil
}

func setupPrettyLogging() {
	writer := zerolog.ConsoleWriter{Out: os.Stderr}
	writer.FormatFieldValue = func(i interface{}) string {
		switch v := i.(type) {
		case json.Number:
			val, _ := v.Float64()
			return fmt.Sprintf("%.3f", val)
		default:
			return fmt.Sprintf("%s", i)
		}
	}
	log.Logger = log.Output(writer)
}
