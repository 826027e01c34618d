package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ferrydl/ferry"
)

var hashPasswordCmd = &cobra.Command{
	Use:   "hash-password [password]",
	Short: "Print the argon2id encoding of a password",
	Long: `Print the argon2id encoding of a password, suitable for the
password column of a download. Without an argument the password is
read from a masked prompt.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runHashPassword,
}

func init() {
	rootCmd.AddCommand(hashPasswordCmd)
}

func runHashPassword(cmd *cobra.Command, args []string) error {
	var password string
	if len(args) == 1 {
		password = args[0]
	} else {
		var err error
		if password, err = promptPassword("Password"); err != nil {
			return err
		}
	}

	if password == "" {
		return errors.New("password cannot be empty")
	}

	hashed, err := ferry.HashPassword(password)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	fmt.Fprintln(cmd.OutOrStdout(), hashed)
	return nil
}
