package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/younoch/property-manegment-frontend-sub000/client"
	sessionbbolt "github.com/younoch/property-manegment-frontend-sub000/session/bbolt"
)

var (
	apiURL   string
	stateDir string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", "http://localhost:8080", "Base URL of the API")
	rootCmd.PersistentFlags().StringVar(&stateDir, "state-dir", defaultStateDir(), "Directory for persisted client state")
}

func defaultStateDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".propman"
	}
	return filepath.Join(home, ".propman")
}

// newClient builds the API client with a bbolt-backed session store so the
// signed-in principal survives between invocations.
func newClient() (*client.Client, func(), error) {
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("creating state directory: %w", err)
	}
	store, err := sessionbbolt.NewStoreFromFile(filepath.Join(stateDir, "session.db"), nil)
	if err != nil {
		return nil, nil, fmt.Errorf("opening session store: %w", err)
	}
	c, err := client.New(apiURL, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	cleanup := func() {
		c.Close()
		store.Close()
	}
	return c, cleanup, nil
}
