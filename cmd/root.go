package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/leasescan/leasescan/internal/utils"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

var cfgFile string

const (
	LOGO = `	 _
	| | ___  __ _ ___  ___  ___  ___ __ _ _ __
	| |/ _ \/ _' / __|/ _ \/ __|/ __/ _' | '_ \
	| |  __/ (_| \__ \  __/\__ \ (_| (_| | | | |
	|_|\___|\__,_|___/\___||___/\___\__,_|_| |_|

`
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "leasescan",
	Short: "Incremental change detection and scrape scheduling for vehicle lease listings.",
	Long: LOGO + `leasescan compares cheap overview scans of lease storefronts against
previously scraped price data, decides which vehicles actually need an
expensive full re-scrape, and schedules that work in a durable, resumable,
priority-ordered queue.`,
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
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.leasescan.yaml)")

	// Global flags
	rootCmd.PersistentFlags().StringP("loglevel", "l", "info", "Set log level. Available: debug, info, warn, error, fatal")
	rootCmd.PersistentFlags().String("dbpath", "", "Path to the queue SQLite file (default: ~/.config/leasescan/leasescan.sqlite)")
	rootCmd.PersistentFlags().String("cachedir", "", "Directory holding the price cache files (default: output)")
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}
		viper.AddConfigPath(home)
		viper.SetConfigName(".leasescan")
		viper.SetConfigType("yaml")
	}

	viper.AutomaticEnv()

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; create it with defaults.
			home, _ := homedir.Dir()
			configPath := home + "/.leasescan.yaml"
			if err := viper.SafeWriteConfigAs(configPath); err != nil {
				fmt.Printf("Error creating config file: %s", err)
			}
		}
	}

	// Set default empty values for all keys
	viper.SetDefault("cachedir", "output")
	viper.SetDefault("freshness_days", 7)
	viper.SetDefault("max_attempts", 3)
	for _, id := range []string{"toyota_nl", "suzuki_nl", "ayvens_nl", "leasys_nl"} {
		viper.SetDefault("scrapers."+id+".command", []string{})
	}

	// Init log library
	levelString, _ := rootCmd.PersistentFlags().GetString("loglevel")
	utils.SetLogLevel(levelString)
}
