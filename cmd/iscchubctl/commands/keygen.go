package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/iscc/iscc-hub/internal/cliutil"
	"github.com/iscc/iscc-hub/pkg/config"
	"github.com/iscc/iscc-hub/pkg/hubidentity"
)

var (
	keygenOut    string
	keygenDomain string
	keygenForce  bool
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate the HUB's Ed25519 signing key",
	Long: `Generate a fresh Ed25519 keypair and write the hex-encoded private
key to --out (default: <config dir>/seckey). Point "seckey" in config.yaml
at that file.

The public key and derived did:web controller id are printed so they can
be published wherever relying parties resolve the HUB's DID document.`,
	RunE: runKeygen,
}

func init() {
	keygenCmd.Flags().StringVar(&keygenOut, "out", "", "Path to write the private key (default: <config dir>/seckey)")
	keygenCmd.Flags().StringVar(&keygenDomain, "domain", "", "Domain the HUB's did:web identity is bound to")
	keygenCmd.Flags().BoolVar(&keygenForce, "force", false, "Overwrite an existing key file without prompting")
	_ = keygenCmd.MarkFlagRequired("domain")
}

func runKeygen(cmd *cobra.Command, args []string) error {
	out := keygenOut
	if out == "" {
		out = filepath.Join(config.GetConfigDir(), "seckey")
	}

	if _, err := os.Stat(out); err == nil {
		confirmed, err := cliutil.ConfirmWithForce(fmt.Sprintf("%s already exists, overwrite?", out), keygenForce)
		if err != nil {
			return err
		}
		if !confirmed {
			fmt.Println("aborted")
			return nil
		}
	}

	identity, err := hubidentity.Generate(keygenDomain)
	if err != nil {
		return fmt.Errorf("failed to generate identity: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(out), 0o700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	if err := os.WriteFile(out, []byte(identity.SeckeyHex()+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}

	fmt.Printf("Signing key written to: %s\n", out)
	fmt.Printf("  Public key:   %s\n", identity.PubkeyHex())
	fmt.Printf("  Controller:   %s\n", identity.ControllerID())
	fmt.Printf("  Verification: %s\n", identity.VerificationMethod())
	fmt.Println("\nSet \"seckey\" in config.yaml to this path and keep the file mode 0600.")

	return nil
}
