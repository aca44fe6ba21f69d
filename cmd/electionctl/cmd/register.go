package cmd

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/spf13/cobra"

	"election-backend/auth"
	"election-backend/service"
)

var (
	flagVoter   string
	flagStake   uint64
	flagUseLog  bool
	flagPurpose string
)

var registerCmd = &cobra.Command{
	Use:   "register",
	Short: "Register a voter, signed by the voting authority key",
	RunE: func(cmd *cobra.Command, args []string) error {
		authority, err := loadIssuer(flagKey)
		if err != nil {
			return err
		}
		voter, err := parseIdentityFlag("voter", flagVoter)
		if err != nil {
			return err
		}

		msg := auth.RegistrationMessage(voter, flagStake, flagElection)
		proof := auth.Proof{Log: authority.SignLog(msg)}
		if !flagUseLog {
			cert, err := authority.IssueCertificate(msg)
			if err != nil {
				return err
			}
			proof = auth.Proof{Certificate: cert}
		}

		return withService(func(svc *service.ElectionService) error {
			v, err := svc.RegisterVoter(flagElection, authority.Identity(), voter, flagStake, proof)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), v)
		})
	},
}

// issueCertCmd signs a certificate offline; it never touches the store.
var issueCertCmd = &cobra.Command{
	Use:   "issue-cert",
	Short: "Issue a registration or commit authorization certificate",
	RunE: func(cmd *cobra.Command, args []string) error {
		authority, err := loadIssuer(flagKey)
		if err != nil {
			return err
		}
		voter, err := parseIdentityFlag("voter", flagVoter)
		if err != nil {
			return err
		}

		var msg []byte
		switch flagPurpose {
		case "register":
			msg = auth.RegistrationMessage(voter, flagStake, flagElection)
		case "commit":
			if cfgErr != nil {
				return cfgErr
			}
			msg, err = auth.CommitAuthorizationMessage(voter, flagStake, cfg.StakeMultiplier, flagElection)
			if err != nil {
				return err
			}
		default:
			return fmt.Errorf("invalid --purpose %q: want register or commit", flagPurpose)
		}

		cert, err := authority.IssueCertificate(msg)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), hexutil.Encode(cert))
		return err
	},
}

func init() {
	rootCmd.AddCommand(registerCmd, issueCertCmd)

	addKeyFlag(registerCmd, issueCertCmd)
	addElectionFlag(registerCmd, issueCertCmd)

	for _, c := range []*cobra.Command{registerCmd, issueCertCmd} {
		c.Flags().StringVar(&flagVoter, "voter", "", "identity of the voter [required]")
		_ = c.MarkFlagRequired("voter")
		c.Flags().Uint64Var(&flagStake, "stake", 0, "registered stake of the voter [required]")
		_ = c.MarkFlagRequired("stake")
	}
	registerCmd.Flags().BoolVar(&flagUseLog, "signature-log", false, "endorse with a signature log instead of a certificate")
	issueCertCmd.Flags().StringVar(&flagPurpose, "purpose", "commit", "register or commit")
}
