package commands

import (
	"fmt"
	"path/filepath"

	"github.com/at2-network/at2-node/src/at2"
	"github.com/at2-network/at2-node/src/config"
	"github.com/at2-network/at2-node/src/crypto/keys"
	"github.com/spf13/cobra"
)

// NewKeygenCmd produces a KeygenCmd which generates a key pair for the node.
func NewKeygenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a new key pair",
		RunE:  keygen,
	}

	return cmd
}

func keygen(cmd *cobra.Command, args []string) error {
	datadir, err := cmd.Flags().GetString("datadir")
	if err != nil {
		return err
	}

	keyfile := filepath.Join(datadir, config.DefaultKeyfile)

	privKey, err := at2.Keygen(keyfile)
	if err != nil {
		return err
	}

	fmt.Printf("Your key has been generated in %s\n", keyfile)
	fmt.Printf("Public key: %s\n", keys.PublicKeyHex(&privKey.PublicKey))

	return nil
}
