package cli

import (
	"fmt"
	"time"

	"github.com/pkg/browser"
	"github.com/spf13/cobra"

	"github.com/tempo-ai/tempo-go/internal/auth"
	tempo "github.com/tempo-ai/tempo-go/sdk"
)

const loginTimeout = 5 * time.Minute

var loginCmd = &cobra.Command{
	Use:   "login",
	Short: "Log in via Google and save the access token",
	Args:  cobra.NoArgs,
	RunE:  runLogin,
}

func runLogin(cmd *cobra.Command, args []string) error {
	cfg := loadConfig()

	resultChan, loginURL, err := auth.StartLogin(cfg.BaseURL)
	if err != nil {
		return err
	}

	fmt.Println("Opening browser for Google login...")
	fmt.Println()
	fmt.Println("If the browser doesn't open, visit:")
	fmt.Println(loginURL)
	fmt.Println()

	// Best effort; the URL was printed above as a fallback.
	_ = browser.OpenURL(loginURL)

	fmt.Println("Waiting for login to complete...")

	select {
	case result := <-resultChan:
		if result.Error != nil {
			return fmt.Errorf("login failed: %w", result.Error)
		}
		store, err := tempo.NewFileTokenStore("")
		if err != nil {
			return err
		}
		if err := store.Save(result.Token); err != nil {
			return fmt.Errorf("saving token: %w", err)
		}
		fmt.Println()
		fmt.Println("Logged in. Token saved to", store.Path)
		return nil

	case <-time.After(loginTimeout):
		return fmt.Errorf("timed out waiting for login")
	}
}
