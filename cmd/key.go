package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/TopiaNetwork/aggregation/crypt/bn254"
	tpnetcmn "github.com/TopiaNetwork/aggregation/network/common"
)

var (
	deriveSeed    uint64
	derivePrivate bool
)

var keyDeriveCmd = &cobra.Command{
	Use:   "derive",
	Short: "Prints the identity derived from a seed.",
	Long:  `Prints the BN254 public key (G2, hex) and the libp2p peer ID derived from a seed.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		priKey, pubKey, err := bn254.DeriveKey(deriveSeed)
		if err != nil {
			return err
		}

		peerID, err := tpnetcmn.PeerIDFromSecret(priKey.Bytes())
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "public_key: %s\n", pubKey.String())
		fmt.Fprintf(out, "peer_id: %s\n", peerID.String())
		if derivePrivate {
			fmt.Fprintf(out, "private_key: %x\n", priKey.Bytes())
		}

		return nil
	},
}

var keyCmd = &cobra.Command{
	Use:   "key",
	Short: "Key utilities.",
}

func KeyCmd() *cobra.Command {
	flags := keyDeriveCmd.Flags()
	flags.Uint64Var(&deriveSeed, "seed", 0, "derivation seed")
	flags.BoolVar(&derivePrivate, "private", false, "also print the private key")
	keyDeriveCmd.MarkFlagRequired("seed")

	keyCmd.AddCommand(keyDeriveCmd)

	return keyCmd
}
