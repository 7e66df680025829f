package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/flagged-dev/flagged/internal/utils"
	"github.com/flagged-dev/flagged/pkg/lookup"
	"github.com/flagged-dev/flagged/pkg/polling"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	  __ _                            _
	 / _| | __ _  __ _  __ _  ___  __| |
	| |_| |/ _' |/ _' |/ _' |/ _ \/ _' |
	|  _| | (_| | (_| | (_| |  __/ (_| |
	|_| |_|\__,_|\__, |\__, |\___|\__,_|
	             |___/ |___/

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "flagged",
	Short: "Flag and filter accounts by their self-reported location.",
	Long: LOGO + `flagged looks up where accounts say they are based, turns that into a country,
continent and flag, and decides whether to hide them under your block list.

Results are cached locally so every account is looked up once.`,
	CompletionOptions: cobra.CompletionOptions{
		DisableDefaultCmd: true,
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.flagged.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("proxy", "", "", "HTTP Proxy (Useful for debugging. Example: http://127.0.0.1:8080)")
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
}

func setDefaults() {
	viper.SetDefault("settings.enabled", true)
	viper.SetDefault("settings.blocklist", []string{"India"})
	viper.SetDefault("settings.filter_mode", "blocklist")
	viper.SetDefault("settings.allow_handles", []string{})
	viper.SetDefault("settings.deny_handles", []string{})
	viper.SetDefault("settings.fetch_enabled", true)
	viper.SetDefault("settings.hide_mode", "blur")
	viper.SetDefault("settings.show_flags", true)
	viper.SetDefault("settings.show_flags_filtered_only", false)

	viper.SetDefault("api.endpoint", lookup.DefaultEndpoint)
	viper.SetDefault("api.query_id", lookup.DefaultQueryID)
	viper.SetDefault("api.bearer_token", "")
	viper.SetDefault("api.cookie", "")
	viper.SetDefault("api.retries", 0)
	viper.SetDefault("api.timeout", "15s")

	viper.SetDefault("queue.max_active", polling.DefaultMaxActive)
	viper.SetDefault("queue.interval", polling.DefaultInterval.String())
	viper.SetDefault("queue.rate_limit_backoff", polling.DefaultRateLimitBackoff.String())
	viper.SetDefault("queue.stale_after", "5m")

	viper.SetDefault("store.driver", "sqlite")
	viper.SetDefault("store.path", "~/.config/flagged/flagged.sqlite")
	viper.SetDefault("store.redis_addr", "localhost:6379")
	viper.SetDefault("store.redis_prefix", "flagged")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	setDefaults()

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".flagged")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("flagged")
	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.flagged.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
