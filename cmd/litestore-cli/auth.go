package main

import (
	"context"
	"fmt"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/lines-of-codes/litestore/clientcli"
)

var signupCmd = &cobra.Command{
	Use:   "signup <username> <email>",
	Short: "Create an account",
	Long: `Create an account on the server. The password is prompted for.

Examples:
  litestore-cli signup alice alice@example.com
  litestore-cli --endpoint https://files.example.com signup alice alice@example.com`,
	Args: cobra.ExactArgs(2),
	RunE: runSignup,
}

var loginCmd = &cobra.Command{
	Use:   "login [username]",
	Short: "Log in and store the session token",
	Long: `Log in and store the session token in the selected profile.

Without a configured profile, a profile named "default" is created for
the endpoint.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runLogin,
}

func runSignup(_ *cobra.Command, args []string) error {
	password, err := promptSecret("Password", true)
	if err != nil {
		return handlePromptError(err)
	}

	client, err := getAnonymousClient()
	if err != nil {
		return err
	}

	if err := client.SignUp(context.Background(), args[0], args[1], password); err != nil {
		return fail(err)
	}

	if !quiet {
		fmt.Printf("Account '%s' created. Run 'litestore-cli login %s' to log in.\n", args[0], args[0])
	}
	return nil
}

func runLogin(_ *cobra.Command, args []string) error {
	configPath := getConfigPath()
	cf, err := loadOrCreateConfigFile(configPath)
	if err != nil {
		return err
	}

	name := getProfileName()
	profile, err := cf.GetProfile(name)
	if err != nil {
		if name == "" {
			name = "default"
		}
		profile = &clientcli.Profile{Name: name}
		if addErr := cf.AddProfile(*profile); addErr != nil {
			return addErr
		}
		profile, _ = cf.GetProfile(name)
	}

	cfg, err := buildConfig()
	if err != nil {
		return err
	}
	cfg = cfg.WithDefaults()
	if profile.Endpoint == "" || endpoint != "" {
		profile.Endpoint = cfg.Endpoint
	}

	username := profile.Username
	if len(args) > 0 {
		username = args[0]
	}
	if username == "" {
		usernamePrompt := promptui.Prompt{Label: "Username"}
		if username, err = usernamePrompt.Run(); err != nil {
			return handlePromptError(err)
		}
	}

	password, err := promptSecret("Password", false)
	if err != nil {
		return handlePromptError(err)
	}

	client, err := clientcli.New(&clientcli.Config{Endpoint: profile.Endpoint})
	if err != nil {
		return err
	}

	sessionToken, err := client.Login(context.Background(), username, password)
	if err != nil {
		return fail(err)
	}

	profile.Username = username
	profile.Token = sessionToken
	if err := cf.UpdateProfile(*profile); err != nil {
		return err
	}
	if err := cf.Save(configPath); err != nil {
		return fmt.Errorf("save config: %w", err)
	}

	if !quiet {
		fmt.Printf("Logged in as '%s' (profile '%s').\n", username, profile.Name)
	}
	return nil
}

func promptSecret(label string, confirm bool) (string, error) {
	prompt := promptui.Prompt{Label: label, Mask: '*'}
	secret, err := prompt.Run()
	if err != nil {
		return "", err
	}

	if confirm {
		again := promptui.Prompt{Label: "Confirm " + label, Mask: '*'}
		repeated, err := again.Run()
		if err != nil {
			return "", err
		}
		if repeated != secret {
			return "", fmt.Errorf("%s does not match", label)
		}
	}

	return secret, nil
}
