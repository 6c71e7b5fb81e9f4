package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/vinayakanadinni99/ETL-Finance/config"
	"github.com/vinayakanadinni99/ETL-Finance/logger"
)

var rootCmd = &cobra.Command{
	Use:   "etl",
	Short: "etl cli for the Alpha Vantage daily time series pipeline",
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newScheduleCmd())
	rootCmd.AddCommand(newCreateTableCmd())
	rootCmd.AddCommand(newLoadFileCmd())
	rootCmd.AddCommand(newShowCmd())
	rootCmd.AddCommand(newRunSQLCmd())
}

func isRunningOnGitHubActions() bool {
	return os.Getenv("GITHUB_ACTIONS") == "true"
}

// initializeConfigAndLogger loads the layered config, applies the command's flag
// overrides and validates the result, so every command starts from a usable config.
func initializeConfigAndLogger(overrides ...func(*config.Config)) (*config.Config, *slog.Logger, error) {
	log := logger.NewLogger()
	if !isRunningOnGitHubActions() {
		// secrets may come straight from the environment, so a missing .env is fine
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			log.Error("Error loading .env file", "error", err)
			return nil, nil, err
		}
	}

	// 1. Open the base configuration file
	baseConfigFile, err := os.Open("config.base.yaml")
	if err != nil {
		log.Error(fmt.Sprintf("Error opening base config file: %v", err))
		return nil, nil, err
	}
	defer baseConfigFile.Close()

	// 2. Prepare environment-specific config reader (if needed)
	env := os.Getenv("APP_ENV")
	var envConfigFile *os.File
	envConfigFilename := fmt.Sprintf("config.%s.yaml", env)
	if _, err := os.Stat(envConfigFilename); err == nil {
		envConfigFile, err = os.Open(envConfigFilename)
		if err != nil {
			log.Error(fmt.Sprintf("Error opening environment config file: %v", err))
			return nil, nil, err
		}
		defer envConfigFile.Close()
	}

	// 3. Create the config. A nil *os.File must not reach NewConfig as a non-nil io.Reader.
	var cfg *config.Config
	if envConfigFile != nil {
		cfg, err = config.NewConfig(baseConfigFile, envConfigFile, env)
	} else {
		cfg, err = config.NewConfig(baseConfigFile, nil, env)
	}
	if err != nil {
		log.Error(fmt.Sprintf("Error reading config: %v", err))
		return nil, nil, err
	}

	for _, override := range overrides {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		log.Error(fmt.Sprintf("Invalid config: %v", err))
		return nil, nil, err
	}

	return cfg, log, nil
}
