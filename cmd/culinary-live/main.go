package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redilah/CulinaryAI/pkg/config"
	"github.com/redilah/CulinaryAI/runtime/logger"
	"github.com/redilah/CulinaryAI/runtime/version"
)

var rootCmd = &cobra.Command{
	Use:           "culinary-live",
	Short:         "Nary - realtime voice and vision cooking assistant",
	Version:       version.GetVersion(),
	SilenceUsage:  true,
	SilenceErrors: false,
	Long: `culinary-live runs Nary, a cooking assistant you talk to while you cook.

It streams your microphone (and optionally your camera) to the Gemini Live API,
plays the spoken answers back and prints what Nary says as it speaks.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		loadDotEnv()
		if cmd.Flags().Changed("verbose") {
			verbose, err := cmd.Flags().GetBool("verbose")
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error getting verbose flag: %v\n", err)
				return
			}
			logger.SetVerbose(verbose)
		}
	},
}

// envPaths are tried in order; the first readable file wins.
func envPaths() []string {
	paths := []string{".env"}
	if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".culinaryai.env"))
	}
	return paths
}

func loadDotEnv() {
	for _, path := range envPaths() {
		if err := godotenv.Load(path); err == nil {
			logger.Debug("Loaded environment file", "path", path)
			return
		}
	}
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	viper.SetEnvPrefix(config.EnvPrefix)
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	viper.AutomaticEnv()
	// The key is also accepted under the name Google's tooling uses.
	_ = viper.BindEnv(keyAPIKey, config.EnvPrefix+"_API_KEY", "GEMINI_API_KEY")
}

func setupVersion() {
	rootCmd.SetVersionTemplate(version.Get().String() + "\n")
}

// Execute runs the root command.
func Execute() {
	setupVersion()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func main() {
	Execute()
}
