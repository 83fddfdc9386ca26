package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	tempo "github.com/tempo-ai/tempo-go/sdk"
)

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the saved access token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := tempo.NewFileTokenStore("")
		if err != nil {
			return err
		}
		if err := store.Clear(); err != nil {
			return err
		}
		fmt.Println("Logged out.")
		return nil
	},
}
