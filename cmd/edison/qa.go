package main

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/edisonhq/edison/internal/evidence"
	"github.com/edisonhq/edison/internal/validator"
)

var qaCmd = &cobra.Command{
	Use:   "qa",
	Short: "Manage QA rounds",
}

var (
	qaRound        int
	qaChangedFiles []string
)

var qaValidateCmd = &cobra.Command{
	Use:   "validate [task-id]",
	Short: "Run the validator roster for a task's round",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		defs, err := validator.LoadDefinitions(filepath.Join(filepath.Dir(svc.EvidenceRoot), "validators.yaml"))
		if err != nil {
			return fmt.Errorf("loading validator definitions: %w", err)
		}
		qa, waves, err := svc.ValidateQA(cmd.Context(), args[0], qaRound, defs, qaChangedFiles, nil)
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(struct {
			State string                 `json:"state"`
			Waves []validator.WaveResult `json:"waves"`
		}{State: string(qa.State), Waves: waves}, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var qaPromoteCmd = &cobra.Command{
	Use:   "promote [task-id]",
	Short: "Compute bundle approval and promote QA to validated",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		defs, err := validator.LoadDefinitions(filepath.Join(filepath.Dir(svc.EvidenceRoot), "validators.yaml"))
		if err != nil {
			return fmt.Errorf("loading validator definitions: %w", err)
		}
		orch, err := svc.Config.Orchestration()
		if err != nil {
			return err
		}
		roster := validator.AssembleRoster(defs, qaChangedFiles, nil, orch.Waves)
		waveOrder := validator.OrderedWaves(roster, orch.Waves)
		roundDir := evidence.Round{EvidenceRoot: svc.EvidenceRoot, TaskID: args[0], Number: qaRound}.Dir()
		waves := validator.LoadWaveResults(roundDir, roster, waveOrder)
		updated, err := svc.PromoteQA(cmd.Context(), args[0], qaRound, roster, waves)
		if err != nil {
			return err
		}
		fmt.Println(updated.State)
		return nil
	},
}

var qaRejectCmd = &cobra.Command{
	Use:   "reject [task-id]",
	Short: "Start a new round after a rejection",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		qa, round, err := svc.RejectQA(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		fmt.Printf("%s round=%d\n", qa.State, round)
		return nil
	},
}

func init() {
	qaValidateCmd.Flags().IntVar(&qaRound, "round", 1, "round number")
	qaValidateCmd.Flags().StringSliceVar(&qaChangedFiles, "changed", nil, "changed files, for trigger-glob matching")
	qaPromoteCmd.Flags().IntVar(&qaRound, "round", 1, "round number")
	qaPromoteCmd.Flags().StringSliceVar(&qaChangedFiles, "changed", nil, "changed files, for trigger-glob matching")

	qaCmd.AddCommand(qaValidateCmd, qaPromoteCmd, qaRejectCmd)
}
