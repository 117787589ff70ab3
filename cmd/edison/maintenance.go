package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/edisonhq/edison/internal/entity"
	"github.com/edisonhq/edison/internal/maintenance"
)

var maintenanceCmd = &cobra.Command{
	Use:   "maintenance",
	Short: "Run Edison's periodic janitor jobs",
}

var (
	maintenanceLockInterval  time.Duration
	maintenanceRoundInterval time.Duration
	maintenanceRoundMaxAge   time.Duration
)

var maintenanceRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the stale-lock and stale-round scans until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		qaDomain, err := svc.Config.QA()
		if err != nil {
			return err
		}

		sched := maintenance.NewScheduler(svc.Log)
		sched.AddJob(&maintenance.StaleLockJob{
			Scanners: []maintenance.StaleLockScanner{
				&maintenance.RepositoryScanner[*entity.Task]{Repo: svc.Tasks},
				&maintenance.RepositoryScanner[*entity.QA]{Repo: svc.QAs},
				&maintenance.RepositoryScanner[*entity.Session]{Repo: svc.Sessions},
			},
			Log: svc.Log,
		}, maintenanceLockInterval)
		sched.AddJob(&maintenance.StaleRoundJob{
			EvidenceRoot: svc.EvidenceRoot,
			MaxAge:       maintenanceRoundMaxAge,
			MaxRounds:    qaDomain.MaxRounds,
			Clock:        svc.Clock,
			Log:          svc.Log,
		}, maintenanceRoundInterval)

		sched.Start(cmd.Context())
		fmt.Println("maintenance scheduler running, press ctrl-c to stop")
		<-cmd.Context().Done()
		sched.Stop()
		fmt.Printf("total issues found: %d %v\n", sched.Report().Total(), sched.Report().ByJob())
		return nil
	},
}

func init() {
	maintenanceRunCmd.Flags().DurationVar(&maintenanceLockInterval, "lock-interval", 5*time.Minute, "stale-lock scan interval")
	maintenanceRunCmd.Flags().DurationVar(&maintenanceRoundInterval, "round-interval", 15*time.Minute, "stale-round scan interval")
	maintenanceRunCmd.Flags().DurationVar(&maintenanceRoundMaxAge, "round-max-age", 24*time.Hour, "age past which an unapproved round is flagged")

	maintenanceCmd.AddCommand(maintenanceRunCmd)
}
