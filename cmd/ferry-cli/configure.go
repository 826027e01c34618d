package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/ferrydl/ferry/clientcli"
)

var configureCmd = &cobra.Command{
	Use:   "configure",
	Short: "Manage server profiles",
	Long: `Manage saved server profiles.

A profile holds an endpoint and an optional bearer token. Select one with
--profile or FERRY_PROFILE; otherwise the default profile is used.

Profiles are stored in ~/.ferry/profiles.yaml.`,
}

var configureListCmd = &cobra.Command{
	Use:   "list",
	Short: "List profiles, the default marked with *",
	Args:  cobra.NoArgs,
	RunE:  runConfigureList,
}

var configureAddCmd = &cobra.Command{
	Use:   "add <name>",
	Short: "Add or update a profile interactively",
	Long: `Add or update a profile.

You are prompted for the endpoint URL, the token and whether the profile
becomes the default. The connection and token are checked before saving.`,
	Args: cobra.ExactArgs(1),
	RunE: runConfigureAdd,
}

var configureRemoveCmd = &cobra.Command{
	Use:     "remove <name>",
	Aliases: []string{"rm"},
	Short:   "Remove a profile",
	Args:    cobra.ExactArgs(1),
	RunE:    runConfigureRemove,
}

var configureSetDefaultCmd = &cobra.Command{
	Use:   "set-default <name>",
	Short: "Set the default profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigureSetDefault,
}

var configureShowCmd = &cobra.Command{
	Use:   "show [name]",
	Short: "Show a profile, the default one without a name",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runConfigureShow,
}

var showSecrets bool

func init() {
	configureCmd.AddCommand(configureListCmd, configureAddCmd, configureRemoveCmd, configureSetDefaultCmd, configureShowCmd)

	configureShowCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print tokens in full")
	configureListCmd.Flags().BoolVar(&showSecrets, "show-secrets", false, "print tokens in full")
}

// loadProfiles returns the profile file, or an empty one when it does not
// exist yet.
func loadProfiles() (*clientcli.ConfigFile, error) {
	cfg, err := clientcli.LoadConfigFile(getConfigPath())
	if errors.Is(err, os.ErrNotExist) {
		return &clientcli.ConfigFile{}, nil
	}
	return cfg, err
}

func runConfigureList(_ *cobra.Command, _ []string) error {
	cfg, err := loadProfiles()
	if err != nil {
		return err
	}

	if len(cfg.Profiles) == 0 && !jsonOutput {
		fmt.Println("No profiles configured.")
		fmt.Println("Run 'ferry-cli configure add <name>' to create one.")
		return nil
	}

	return getFormatter().FormatProfileList(os.Stdout, cfg.Profiles, cfg.DefaultName(), showSecrets)
}

func runConfigureAdd(cmd *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := loadProfiles()
	if err != nil {
		return err
	}

	existing, _ := cfg.GetProfile(name)
	if existing != nil {
		prompt := promptui.Prompt{
			Label:     fmt.Sprintf("Profile '%s' already exists. Update it", name),
			IsConfirm: true,
		}
		if _, err := prompt.Run(); err != nil {
			return handlePromptError(err)
		}
	}

	defaultEndpoint := clientcli.DefaultEndpoint
	if existing != nil {
		defaultEndpoint = existing.Endpoint
	}

	endpointPrompt := promptui.Prompt{
		Label:    "Endpoint URL",
		Default:  defaultEndpoint,
		Validate: clientcli.ValidateEndpoint,
	}
	endpointURL, err := endpointPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}

	tokenPrompt := promptui.Prompt{
		Label: "Token (empty for anonymous)",
		Mask:  '*',
	}
	tokenVal, err := tokenPrompt.Run()
	if err != nil {
		return handlePromptError(err)
	}

	setAsDefault := len(cfg.Profiles) == 0 || (existing != nil && existing.Default)
	if !setAsDefault {
		defaultPrompt := promptui.Prompt{Label: "Set as default profile", IsConfirm: true}
		if _, err := defaultPrompt.Run(); err == nil {
			setAsDefault = true
		}
	}

	p := clientcli.Profile{
		Name:     name,
		Endpoint: (&clientcli.Config{Endpoint: endpointURL}).WithDefaults().Endpoint,
		Token:    tokenVal,
		Default:  setAsDefault,
	}

	fmt.Print("Checking connection... ")
	if err := checkProfile(cmd.Context(), p); err != nil {
		fmt.Println("FAILED")
		fmt.Printf("Warning: %v\n", err)

		continuePrompt := promptui.Prompt{Label: "Save profile anyway", IsConfirm: true}
		if _, err := continuePrompt.Run(); err != nil {
			return handlePromptError(err)
		}
	} else {
		fmt.Println("OK")
	}

	updated := cfg.Upsert(p)
	if err := cfg.Save(getConfigPath()); err != nil {
		return err
	}

	if updated {
		fmt.Printf("Profile '%s' updated.\n", name)
	} else {
		fmt.Printf("Profile '%s' added.\n", name)
	}
	if setAsDefault {
		fmt.Println("Set as default profile.")
	}
	return nil
}

// checkProfile pings the admin API. Anonymous profiles only need the server
// to answer at all.
func checkProfile(ctx context.Context, p clientcli.Profile) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	client, err := clientcli.New(clientcli.ConfigFromProfile(&p))
	if err != nil {
		return err
	}

	err = client.Ping(ctx)
	var apiErr *clientcli.APIError
	if p.Token == "" && errors.As(err, &apiErr) {
		return nil
	}
	if clientcli.IsAuthError(err) {
		return fmt.Errorf("token rejected for the admin API: %w", err)
	}
	return err
}

func runConfigureRemove(_ *cobra.Command, args []string) error {
	name := args[0]

	cfg, err := loadProfiles()
	if err != nil {
		return err
	}
	if _, err := cfg.GetProfile(name); err != nil {
		return err
	}

	prompt := promptui.Prompt{Label: fmt.Sprintf("Remove profile '%s'", name), IsConfirm: true}
	if _, err := prompt.Run(); err != nil {
		return handlePromptError(err)
	}

	if err := cfg.RemoveProfile(name); err != nil {
		return err
	}
	if err := cfg.Save(getConfigPath()); err != nil {
		return err
	}

	fmt.Printf("Profile '%s' removed.\n", name)
	return nil
}

func runConfigureSetDefault(_ *cobra.Command, args []string) error {
	cfg, err := loadProfiles()
	if err != nil {
		return err
	}
	if err := cfg.SetDefault(args[0]); err != nil {
		return err
	}
	if err := cfg.Save(getConfigPath()); err != nil {
		return err
	}

	fmt.Printf("Default profile set to '%s'.\n", args[0])
	return nil
}

func runConfigureShow(_ *cobra.Command, args []string) error {
	cfg, err := loadProfiles()
	if err != nil {
		return err
	}

	name := ""
	if len(args) > 0 {
		name = args[0]
	}

	p, err := cfg.GetProfile(name)
	if err != nil {
		return err
	}

	return getFormatter().FormatProfileShow(os.Stdout, *p, p.Name == cfg.DefaultName(), showSecrets)
}

// handlePromptError exits quietly on Ctrl-C and treats a declined prompt as
// cancellation.
func handlePromptError(err error) error {
	switch {
	case errors.Is(err, promptui.ErrInterrupt):
		fmt.Println("\nCancelled.")
		os.Exit(0)
	case errors.Is(err, promptui.ErrAbort):
		fmt.Println("Cancelled.")
		return nil
	}
	return err
}
