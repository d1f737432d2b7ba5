package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/iscc/iscc-hub/pkg/config"
)

var initForce bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sample configuration file",
	Long: `Initialize a sample ISCC HUB configuration file.

By default, the configuration file is created at
$XDG_CONFIG_HOME/iscchub/config.yaml. Use --config to specify a custom path.

Examples:
  # Initialize with default location
  iscchubd init

  # Initialize with custom path
  iscchubd init --config /etc/iscc-hub/config.yaml

  # Force overwrite existing config
  iscchubd init --force`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initForce, "force", false, "Force overwrite existing config file")
}

func runInit(cmd *cobra.Command, args []string) error {
	configFile := GetConfigFile()

	var configPath string
	var err error

	if configFile != "" {
		err = config.InitConfigToPath(configFile, initForce)
		configPath = configFile
	} else {
		configPath, err = config.InitConfig(initForce)
	}

	if err != nil {
		return fmt.Errorf("failed to initialize config: %w", err)
	}

	fmt.Printf("Configuration file created at: %s\n", configPath)
	fmt.Println("\nNext steps:")
	fmt.Println("  1. Generate a signing key:  iscchubctl keygen")
	fmt.Println("  2. Edit server_id, seckey, and domain in the config file")
	fmt.Println("  3. Start the server:        iscchubd start")

	return nil
}
