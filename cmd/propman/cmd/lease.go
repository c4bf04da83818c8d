package cmd

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var leaseCmd = &cobra.Command{
	Use:   "lease",
	Short: "Lease operations",
}

var leaseActivateCmd = &cobra.Command{
	Use:   "activate <lease-id>",
	Short: "Activate a lease through the protected request path",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid lease id: %w", err)
		}

		c, cleanup, err := newClient()
		if err != nil {
			return err
		}
		defer cleanup()

		lease, err := c.ActivateLease(cmd.Context(), id)
		if err != nil {
			return err
		}
		fmt.Printf("Lease %d is now %s\n", lease.ID, lease.Status)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(leaseCmd)
	leaseCmd.AddCommand(leaseActivateCmd)
}
