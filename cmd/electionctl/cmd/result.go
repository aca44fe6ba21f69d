package cmd

import (
	"github.com/spf13/cobra"

	"election-backend/auth"
	"election-backend/models"
	"election-backend/service"
)

var (
	flagYes       uint64
	flagNo        uint64
	flagFromCount bool
)

var countCmd = &cobra.Command{
	Use:   "count",
	Short: "Decrypt and tally the accepted reveals",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *service.ElectionService) error {
			results, err := svc.CountBallots(flagElection)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), results)
		})
	},
}

var submitResultCmd = &cobra.Command{
	Use:   "submit-result",
	Short: "Sign and submit the final tallies",
	RunE: func(cmd *cobra.Command, args []string) error {
		authority, err := loadIssuer(flagKey)
		if err != nil {
			return err
		}

		return withService(func(svc *service.ElectionService) error {
			yes, no := flagYes, flagNo
			if flagFromCount {
				results, err := svc.CountBallots(flagElection)
				if err != nil {
					return err
				}
				yes, no = results.YesVotes, results.NoVotes
			}

			proof := auth.Proof{Log: authority.SignLog(auth.ResultMessage(flagElection, yes, no))}
			e, err := svc.SubmitFinalResult(flagElection, authority.Identity(), yes, no, proof)
			if err != nil {
				return err
			}
			log.Info().Str("election_id", e.ID).Uint64("yes", yes).Uint64("no", no).
				Str("winner", e.Winner().String()).Msg("submitted final result")
			return printJSON(cmd.OutOrStdout(), e)
		})
	},
}

type auditReport struct {
	Valid  bool            `json:"valid"`
	Error  string          `json:"error,omitempty"`
	Blocks []*models.Block `json:"blocks"`
}

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Print and verify the audit trail of an election",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *service.ElectionService) error {
			blocks, err := svc.AuditTrail(flagElection)
			if err != nil {
				return err
			}
			report := auditReport{Valid: true, Blocks: blocks}
			verifyErr := svc.VerifyAuditTrail(flagElection)
			if verifyErr != nil {
				report.Valid = false
				report.Error = verifyErr.Error()
			}
			if err := printJSON(cmd.OutOrStdout(), report); err != nil {
				return err
			}
			return verifyErr
		})
	},
}

func init() {
	rootCmd.AddCommand(countCmd, submitResultCmd, auditCmd)

	addKeyFlag(submitResultCmd)
	addElectionFlag(countCmd, submitResultCmd, auditCmd)

	submitResultCmd.Flags().Uint64Var(&flagYes, "yes", 0, "stake-weighted yes votes")
	submitResultCmd.Flags().Uint64Var(&flagNo, "no", 0, "stake-weighted no votes")
	submitResultCmd.Flags().BoolVar(&flagFromCount, "from-count", false, "submit the tallies of count instead of --yes/--no")
}
