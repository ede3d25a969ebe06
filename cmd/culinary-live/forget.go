package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/redilah/CulinaryAI/pkg/config"
	"github.com/redilah/CulinaryAI/runtime/statestore"
)

var forgetCmd = &cobra.Command{
	Use:   "forget-name",
	Short: "Forget the remembered user name",
	Long: `Remove the user name Nary remembered from an earlier session. The next
session starts by asking for your name again.`,
	RunE: runForget,
}

func init() {
	rootCmd.AddCommand(forgetCmd)

	flags := forgetCmd.Flags()
	flags.StringP("config", "c", "", "Config file (YAML)")
	flags.String("profile-backend", "", "Profile backend: memory, redis or file")
	flags.String("redis-addr", "", "Redis address for the redis profile backend")
	flags.String("profile-file", "", "Profile file for the file backend")
}

func runForget(cmd *cobra.Command, _ []string) error {
	v := viper.New()
	_ = v.BindPFlag(keyConfig, cmd.Flags().Lookup("config"))
	_ = v.BindPFlag(keyProfileBackend, cmd.Flags().Lookup("profile-backend"))
	_ = v.BindPFlag(keyRedisAddr, cmd.Flags().Lookup("redis-addr"))
	_ = v.BindPFlag(keyProfileFile, cmd.Flags().Lookup("profile-file"))

	profile, err := loadProfileSettings(v)
	if err != nil {
		return err
	}

	store, closeStore, err := openProfileStore(cmd.Context(), profile)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	if err := statestore.ForgetRememberedName(cmd.Context(), store); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "Nama yang diingat sudah dihapus.")
	return nil
}

// loadProfileSettings resolves only the profile section, so forgetting a name
// does not require an API key or recipe.
func loadProfileSettings(v *viper.Viper) (config.ProfileConfig, error) {
	cfg := config.Default()
	if path := v.GetString(keyConfig); path != "" {
		loaded, err := config.LoadConfig(path)
		if err != nil {
			return config.ProfileConfig{}, err
		}
		cfg = loaded
	}
	overrideString(v, keyProfileBackend, &cfg.Profile.Backend)
	overrideString(v, keyRedisAddr, &cfg.Profile.Redis.Addr)
	overrideString(v, keyProfileFile, &cfg.Profile.File.Path)
	return cfg.Profile, nil
}
