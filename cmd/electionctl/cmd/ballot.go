package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"election-backend/auth"
	"election-backend/encryption"
	"election-backend/models"
	"election-backend/service"
)

var (
	flagBallotKeyFile string
	flagBallotFile    string
	flagChoice        string
	flagCertificate   string
)

var ballotCrypto = encryption.NewCryptoService()

var setEncryptionKeyCmd = &cobra.Command{
	Use:   "set-encryption-key",
	Short: "Generate and publish the ballot encryption key",
	RunE: func(cmd *cobra.Command, args []string) error {
		authority, err := loadIssuer(flagKey)
		if err != nil {
			return err
		}
		pair, err := ballotCrypto.GenerateKeyPair()
		if err != nil {
			return err
		}
		kf := ballotKeyFile{
			EncryptionKey: ballotCrypto.EncryptionKey(pair),
			DecryptionKey: ballotCrypto.DecryptionKey(pair),
		}
		proof := auth.Proof{Log: authority.SignLog(auth.EncryptionKeyMessage(flagElection, kf.EncryptionKey))}

		// The pair is saved first so a published key always has its secret half.
		if err := writeJSON(flagBallotKeyFile, kf); err != nil {
			return err
		}

		return withService(func(svc *service.ElectionService) error {
			e, err := svc.SetEncryptionKey(flagElection, authority.Identity(), kf.EncryptionKey, proof)
			if err != nil {
				return err
			}
			log.Info().Str("election_id", e.ID).Str("file", flagBallotKeyFile).Msg("published encryption key")
			return printJSON(cmd.OutOrStdout(), map[string]string{"encryption_key": kf.EncryptionKey.String()})
		})
	},
}

var commitCmd = &cobra.Command{
	Use:   "commit",
	Short: "Encrypt a choice and commit to it",
	RunE: func(cmd *cobra.Command, args []string) error {
		voter, err := loadIssuer(flagKey)
		if err != nil {
			return err
		}
		choice, err := encryption.ParseChoice(flagChoice)
		if err != nil {
			return err
		}
		cert, err := hexutil.Decode(flagCertificate)
		if err != nil {
			return fmt.Errorf("invalid --cert: %w", err)
		}

		return withService(func(svc *service.ElectionService) error {
			key, err := svc.EncryptionKey(flagElection)
			if err != nil {
				return err
			}
			if len(key) == 0 {
				return fmt.Errorf("%w: election %s has no encryption key", models.ErrInvalidArgument, flagElection)
			}

			payload, err := ballotCrypto.EncryptBallot(choice, key)
			if err != nil {
				return err
			}
			nonce, err := ballotCrypto.GenerateNonce()
			if err != nil {
				return err
			}
			digest := ballotCrypto.Commitment(payload, nonce)

			secret := ballotSecretFile{
				ElectionID: flagElection,
				Choice:     choice.String(),
				Payload:    payload,
				Nonce:      nonce,
				Commitment: digest,
			}
			if err := writeJSON(flagBallotFile, secret); err != nil {
				return err
			}

			v, err := svc.CommitVote(flagElection, voter.Identity(), digest, cert, voter.SignLog(digest))
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		})
	},
}

var revealCmd = &cobra.Command{
	Use:   "reveal",
	Short: "Open a commitment from its ballot file",
	RunE: func(cmd *cobra.Command, args []string) error {
		voter, err := loadIssuer(flagKey)
		if err != nil {
			return err
		}
		var secret ballotSecretFile
		if err := readJSON(flagBallotFile, &secret); err != nil {
			return err
		}
		electionID := flagElection
		if electionID == "" {
			electionID = secret.ElectionID
		}

		return withService(func(svc *service.ElectionService) error {
			v, err := svc.RevealVote(electionID, voter.Identity(), secret.Payload, secret.Nonce)
			if err != nil {
				return err
			}
			if !v.RevealAccepted {
				log.Warn().Str("election_id", electionID).Msg("reveal recorded after the window closed")
			}
			return printJSON(cmd.OutOrStdout(), v)
		})
	},
}

var releaseKeyCmd = &cobra.Command{
	Use:   "release-key",
	Short: "Publish the ballot decryption key",
	RunE: func(cmd *cobra.Command, args []string) error {
		authority, err := loadIssuer(flagKey)
		if err != nil {
			return err
		}
		var kf ballotKeyFile
		if err := readJSON(flagBallotKeyFile, &kf); err != nil {
			return err
		}

		return withService(func(svc *service.ElectionService) error {
			e, err := svc.ReleaseDecryptionKey(flagElection, authority.Identity(), kf.DecryptionKey)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e)
		})
	},
}

func init() {
	rootCmd.AddCommand(setEncryptionKeyCmd, commitCmd, revealCmd, releaseKeyCmd)

	addKeyFlag(setEncryptionKeyCmd, commitCmd, revealCmd, releaseKeyCmd)
	addElectionFlag(setEncryptionKeyCmd, commitCmd, releaseKeyCmd)
	revealCmd.Flags().StringVarP(&flagElection, "election", "e", "", "election id, taken from the ballot file when empty")

	for _, c := range []*cobra.Command{setEncryptionKeyCmd, releaseKeyCmd} {
		c.Flags().StringVar(&flagBallotKeyFile, "ballot-key", "", "file holding the ballot key pair [required]")
		_ = c.MarkFlagRequired("ballot-key")
	}
	for _, c := range []*cobra.Command{commitCmd, revealCmd} {
		c.Flags().StringVar(&flagBallotFile, "ballot", "", "file holding the ballot secret [required]")
		_ = c.MarkFlagRequired("ballot")
	}
	commitCmd.Flags().StringVar(&flagChoice, "choice", "", "yes or no [required]")
	_ = commitCmd.MarkFlagRequired("choice")
	commitCmd.Flags().StringVar(&flagCertificate, "cert", "", "commit authorization certificate, hex [required]")
	_ = commitCmd.MarkFlagRequired("cert")
}
