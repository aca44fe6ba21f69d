package cmd

import (
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"election-backend/models"
	"election-backend/service"
)

var (
	flagKey      string
	flagElection string

	flagName           string
	flagAuthority      string
	flagCommitDuration time.Duration
	flagRevealDuration time.Duration
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create an election administered by --key",
	RunE: func(cmd *cobra.Command, args []string) error {
		admin, err := loadIssuer(flagKey)
		if err != nil {
			return err
		}
		authority, err := parseIdentityFlag("authority", flagAuthority)
		if err != nil {
			return err
		}
		id := flagElection
		if id == "" {
			id = uuid.NewString()
		}

		return withService(func(svc *service.ElectionService) error {
			e, err := svc.Initialize(admin.Identity(), service.InitializeRequest{
				ElectionID:      id,
				Name:            flagName,
				VotingAuthority: authority,
				CommitDuration:  int64(flagCommitDuration / time.Second),
				RevealDuration:  int64(flagRevealDuration / time.Second),
			})
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), e)
		})
	},
}

var startCmd = &cobra.Command{
	Use:   "start",
	Short: "Open the commit phase",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsAdmin(cmd, (*service.ElectionService).StartElection)
	},
}

var endCmd = &cobra.Command{
	Use:   "end",
	Short: "Close the commit phase and open the reveal window",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAsAdmin(cmd, (*service.ElectionService).EndVoting)
	},
}

func runAsAdmin(cmd *cobra.Command, op func(*service.ElectionService, string, models.Identity) (*models.Election, error)) error {
	admin, err := loadIssuer(flagKey)
	if err != nil {
		return err
	}
	return withService(func(svc *service.ElectionService) error {
		e, err := op(svc, flagElection, admin.Identity())
		if err != nil {
			return err
		}
		return printJSON(cmd.OutOrStdout(), e)
	})
}

type electionStatus struct {
	Election *models.Election  `json:"election"`
	Phase    string            `json:"phase"`
	Voters   []models.Identity `json:"voters"`
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show an election and its roster",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *service.ElectionService) error {
			e, err := svc.Election(flagElection)
			if err != nil {
				return err
			}
			voters, err := svc.RegisteredVoters(flagElection)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), electionStatus{Election: e, Phase: string(e.Phase()), Voters: voters})
		})
	},
}

var winnerCmd = &cobra.Command{
	Use:   "winner",
	Short: "Show the winner of the submitted result",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(func(svc *service.ElectionService) error {
			winner, err := svc.GetWinner(flagElection)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), map[string]interface{}{
				"winner": winner.String(),
				"code":   int(winner),
			})
		})
	},
}

// addElectionFlag registers the --election flag on cmds.
func addElectionFlag(cmds ...*cobra.Command) {
	for _, c := range cmds {
		c.Flags().StringVarP(&flagElection, "election", "e", "", "election id [required]")
		_ = c.MarkFlagRequired("election")
	}
}

// addKeyFlag registers the --key flag on cmds.
func addKeyFlag(cmds ...*cobra.Command) {
	for _, c := range cmds {
		c.Flags().StringVarP(&flagKey, "key", "k", "", "identity key file of the caller [required]")
		_ = c.MarkFlagRequired("key")
	}
}

func init() {
	rootCmd.AddCommand(initCmd, startCmd, endCmd, statusCmd, winnerCmd)

	addKeyFlag(initCmd, startCmd, endCmd)
	addElectionFlag(startCmd, endCmd, statusCmd, winnerCmd)

	initCmd.Flags().StringVarP(&flagElection, "election", "e", "", "election id, generated when empty")
	initCmd.Flags().StringVar(&flagName, "name", "", "display name")
	initCmd.Flags().StringVar(&flagAuthority, "authority", "", "identity of the voting authority [required]")
	_ = initCmd.MarkFlagRequired("authority")
	initCmd.Flags().DurationVar(&flagCommitDuration, "commit-duration", time.Hour, "length of the commit phase")
	initCmd.Flags().DurationVar(&flagRevealDuration, "reveal-duration", time.Hour, "length of the reveal window")
}
