package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ferrydl/ferry/clientcli"
)

var (
	version = "dev"

	cfgFile    string
	profile    string
	endpoint   string
	token      string
	jsonOutput bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:     "ferry-cli",
	Version: version,
	Short:   "Client for a running ferry server",
	Long: `ferry-cli fetches downloads from a ferry server and, with an admin
token, lists downloads and their recent events.

Connection settings are resolved in order: profile file, then FERRY_ENDPOINT
and FERRY_TOKEN, then flags.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "profile file (default: ~/.ferry/profiles.yaml)")
	rootCmd.PersistentFlags().StringVarP(&profile, "profile", "p", "", "profile name (env: FERRY_PROFILE)")
	rootCmd.PersistentFlags().StringVarP(&endpoint, "endpoint", "e", "", "server URL (default: http://localhost:8080, env: FERRY_ENDPOINT)")
	rootCmd.PersistentFlags().StringVarP(&token, "token", "t", "", "bearer token (env: FERRY_TOKEN)")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output as JSON")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress non-essential output")

	rootCmd.AddCommand(configureCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(eventsCmd)
	rootCmd.AddCommand(getCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		_ = getFormatter().FormatError(os.Stderr, err)
		os.Exit(1)
	}
}

func getConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	return clientcli.DefaultConfigPath()
}

// buildConfig merges the selected profile, the environment and flags.
func buildConfig() (*clientcli.Config, error) {
	var fromProfile *clientcli.Config

	name := profile
	if name == "" {
		name = clientcli.ProfileFromEnv()
	}

	profiles, err := clientcli.LoadConfigFile(getConfigPath())
	switch {
	case err == nil:
		p, perr := profiles.GetProfile(name)
		switch {
		case perr == nil:
			fromProfile = clientcli.ConfigFromProfile(p)
		case errors.Is(perr, clientcli.ErrProfileNotFound):
			return nil, fmt.Errorf("%w (have: %s)", perr, strings.Join(profiles.ProfileNames(), ", "))
		case name != "" || !errors.Is(perr, clientcli.ErrNoProfiles):
			return nil, perr
		}
	case cfgFile != "" || name != "":
		return nil, fmt.Errorf("load profiles: %w", err)
	}

	return clientcli.MergeConfig(
		fromProfile,
		clientcli.ConfigFromEnv(),
		&clientcli.Config{Endpoint: endpoint, Token: token},
	), nil
}

func getClient(opts ...clientcli.Option) (*clientcli.Client, error) {
	cfg, err := buildConfig()
	if err != nil {
		return nil, err
	}
	return clientcli.New(cfg, opts...)
}

func getFormatter() clientcli.Formatter {
	return clientcli.NewFormatter(jsonOutput, quiet)
}
