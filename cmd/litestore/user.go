package main

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/manifoldco/promptui"
	"github.com/spf13/cobra"

	"github.com/lines-of-codes/litestore"
	"github.com/lines-of-codes/litestore/config"
)

var userCmd = &cobra.Command{
	Use:   "user",
	Short: "Manage accounts",
}

var userAddCmd = &cobra.Command{
	Use:   "add <username> <email>",
	Short: "Create an account",
	Long: `Create an account and its root folder. The password is read from
--password or prompted for.`,
	Args: cobra.ExactArgs(2),
	RunE: runUserAdd,
}

var userAddPassword string

func init() {
	userAddCmd.Flags().StringVar(&userAddPassword, "password", "", "account password (prompted if empty)")
	userCmd.AddCommand(userAddCmd)
	rootCmd.AddCommand(userCmd)
}

func runUserAdd(cmd *cobra.Command, args []string) error {
	cfg, err := config.FromContext(cmd.Context())
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	password := userAddPassword
	if password == "" {
		password, err = promptPassword()
		if err != nil {
			return err
		}
	}

	a, err := newApp(ctx, cfg, false)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	user, err := a.accounts.SignUp(ctx, args[0], args[1], password)
	if err != nil {
		return err
	}

	slog.Info("account created", "id", user.ID, "username", user.Username)
	return nil
}

func promptPassword() (string, error) {
	validate := func(input string) error {
		if len(input) < litestore.MinPasswordLength {
			return fmt.Errorf("password must be at least %d characters", litestore.MinPasswordLength)
		}
		return nil
	}

	prompt := promptui.Prompt{
		Label:    "Password",
		Mask:     '*',
		Validate: validate,
	}
	password, err := prompt.Run()
	if err != nil {
		return "", fmt.Errorf("prompt password: %w", err)
	}

	confirm := promptui.Prompt{
		Label: "Confirm password",
		Mask:  '*',
	}
	again, err := confirm.Run()
	if err != nil {
		return "", fmt.Errorf("prompt password: %w", err)
	}
	if again != password {
		return "", errors.New("passwords do not match")
	}

	return password, nil
}
