package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"
)

var (
	flagMessage string
	flagFormat  string
)

// signCmd endorses arbitrary bytes, for proofs built outside electionctl.
var signCmd = &cobra.Command{
	Use:   "sign",
	Short: "Sign a hex message as a certificate or signature log",
	RunE: func(cmd *cobra.Command, args []string) error {
		issuer, err := loadIssuer(flagKey)
		if err != nil {
			return err
		}
		msg, err := hexutil.Decode(flagMessage)
		if err != nil {
			return fmt.Errorf("invalid --message: %w", err)
		}

		switch flagFormat {
		case "certificate":
			cert, err := issuer.IssueCertificate(msg)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(cert))
			return err
		case "log":
			data, err := json.Marshal(issuer.SignLog(msg))
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return err
		default:
			return fmt.Errorf("invalid --format %q: want certificate or log", flagFormat)
		}
	},
}

func init() {
	rootCmd.AddCommand(signCmd)

	addKeyFlag(signCmd)
	signCmd.Flags().StringVarP(&flagMessage, "message", "m", "", "message to sign, hex [required]")
	_ = signCmd.MarkFlagRequired("message")
	signCmd.Flags().StringVar(&flagFormat, "format", "certificate", "certificate or log")
}
