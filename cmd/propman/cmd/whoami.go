package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Validate the session and print the current principal",
	RunE: func(cmd *cobra.Command, args []string) error {
		c, cleanup, err := newClient()
		if err != nil {
			return err
		}
		defer cleanup()

		user, err := c.WhoAmI(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Printf("%s <%s> role=%s id=%d\n", user.Name, user.Email, user.Role, user.ID)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
