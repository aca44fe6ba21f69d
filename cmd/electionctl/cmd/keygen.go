package cmd

import (
	"github.com/spf13/cobra"

	"election-backend/auth"
)

var flagKeyOut string

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate an identity key",
	RunE: func(cmd *cobra.Command, args []string) error {
		issuer, err := auth.GenerateIssuer()
		if err != nil {
			return err
		}
		if err := writeJSON(flagKeyOut, signingKeyFile{Identity: issuer.Identity(), Seed: issuer.Seed()}); err != nil {
			return err
		}
		log.Info().Str("identity", issuer.Identity().String()).Str("file", flagKeyOut).Msg("generated key")
		return printJSON(cmd.OutOrStdout(), map[string]string{"identity": issuer.Identity().String()})
	},
}

func init() {
	rootCmd.AddCommand(keygenCmd)

	keygenCmd.Flags().StringVarP(&flagKeyOut, "out", "o", "", "file to write the key to [required]")
	_ = keygenCmd.MarkFlagRequired("out")
}
