package cmd

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

var loginEmail string

func prompt(label string) (string, error) {
	fmt.Print(label)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Sign in to the API",
	RunE: func(cmd *cobra.Command, args []string) error {
		email := loginEmail
		if email == "" {
			var err error
			email, err = prompt("Email: ")
			if err != nil {
				return err
			}
		}
		password, err := prompt("Password: ")
		if err != nil {
			return err
		}

		c, cleanup, err := newClient()
		if err != nil {
			return err
		}
		defer cleanup()

		user, err := c.SignIn(cmd.Context(), email, password)
		if err != nil {
			return fmt.Errorf("sign-in failed: %w", err)
		}
		fmt.Printf("Signed in as %s (%s)\n", user.Name, user.Email)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(loginCmd)
	loginCmd.Flags().StringVar(&loginEmail, "email", "", "Account email")
}
