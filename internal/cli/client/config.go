package client

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

// GlobalConfig holds credentials stored in the user's config directory.
type GlobalConfig struct {
	APIToken string `json:"api_token,omitempty"`
	APIURL   string `json:"api_url,omitempty"`
}

func globalConfigPath() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to determine config directory: %w", err)
	}
	return filepath.Join(configDir, "norddok", "config.json"), nil
}

// LoadGlobalConfig reads the global config file. Returns nil (not an error)
// when the file does not exist.
func LoadGlobalConfig() (*GlobalConfig, error) {
	path, err := globalConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read global config: %w", err)
	}

	var cfg GlobalConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse global config: %w", err)
	}

	return &cfg, nil
}

// SaveGlobalConfig writes the global config file with owner-only permissions.
func SaveGlobalConfig(cfg *GlobalConfig) error {
	path, err := globalConfigPath()
	if err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal global config: %w", err)
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write global config: %w", err)
	}

	return nil
}

// DeleteGlobalConfig removes the global config file if it exists.
func DeleteGlobalConfig() error {
	path, err := globalConfigPath()
	if err != nil {
		return err
	}

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete global config: %w", err)
	}

	return nil
}

// InitCmd creates the init command, which stores credentials globally.
func InitCmd() *cobra.Command {
	var (
		apiToken string
		apiURL   string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Store API credentials",
		Long:  "Stores the API token and URL in the user config directory for later commands.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := &GlobalConfig{
				APIToken: apiToken,
				APIURL:   apiURL,
			}
			if err := SaveGlobalConfig(cfg); err != nil {
				return err
			}

			path, _ := globalConfigPath()
			fmt.Printf("Credentials saved to %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&apiToken, "token", "", "API bearer token (empty when the server runs without auth)")
	cmd.Flags().StringVar(&apiURL, "url", defaultAPIURL, "API base URL")

	return cmd
}

// LogoutCmd creates the logout command, which removes stored credentials.
func LogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Remove stored API credentials",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := DeleteGlobalConfig(); err != nil {
				return err
			}
			fmt.Println("Credentials removed.")
			return nil
		},
	}
}
