package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	homedir "github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"commit-reveal-voting/log"
)

var (
	// cfgFile represents the config file path.
	cfgFile string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "commitreveal",
	Short: "Commit-reveal voting round",
	Long: `commitreveal runs a single commit-reveal voting round.

Whitelisted voters commit keccak256(candidate, salt) during the commit phase,
reveal the pair during the reveal phase, and read the tally once the
administrator has advanced the round to results.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return log.SetLevel(viper.GetString("log.level"))
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	defer log.Sync()

	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.commitreveal.yaml)")
	rootCmd.PersistentFlags().String("log.level", "info", "sets the logger verbosity level ('debug', 'info', 'warn', 'error')")
	rootCmd.PersistentFlags().String("storage.dir", "data", "directory for the round state, journal and admin key")
	rootCmd.PersistentFlags().String("admin.key", "", "path of the administrator key file (default is <storage.dir>/admin_credentials.json)")

	bindFlags(rootCmd, "log.level", "storage.dir", "admin.key")

	rootCmd.AddCommand(serveCmd, signCmd, hashCmd, addressCmd, requestCmd)
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := homedir.Dir()
		if err != nil {
			fmt.Println(err)
			os.Exit(1)
		}

		// Search config in home directory with name ".commitreveal" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigName(".commitreveal")
	}

	viper.SetEnvPrefix("COMMITREVEAL")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Info("Using config file", zap.String("path", viper.ConfigFileUsed()))
	}
}

func bindFlags(cmd *cobra.Command, names ...string) {
	for _, name := range names {
		flag := cmd.PersistentFlags().Lookup(name)
		if flag == nil {
			flag = cmd.Flags().Lookup(name)
		}
		if err := viper.BindPFlag(name, flag); err != nil {
			panic(err)
		}
	}
}

func adminKeyPath() string {
	if path := viper.GetString("admin.key"); path != "" {
		return path
	}
	return filepath.Join(viper.GetString("storage.dir"), "admin_credentials.json")
}
