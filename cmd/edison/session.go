package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edisonhq/edison/internal/statemachine/specs"
	"github.com/edisonhq/edison/internal/workflow"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Manage sessions",
}

var (
	sessionOwner  string
	sessionBranch string
	sessionPolicy string
	sessionLimit  int
	sessionReason string
)

var sessionCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create an active session",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		sess, err := svc.CreateSession(cmd.Context(), workflow.NewSessionParams{Owner: sessionOwner, Branch: sessionBranch})
		if err != nil {
			return err
		}
		fmt.Println(sess.ID)
		return nil
	},
}

var sessionNextCmd = &cobra.Command{
	Use:   "next [session-id]",
	Short: "Recommend the next tasks/QA to act on",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		taskSpec, err := specs.Load("task")
		if err != nil {
			return err
		}
		qaSpec, err := specs.Load("qa")
		if err != nil {
			return err
		}
		plan, err := svc.NextRecommendations(cmd.Context(), args[0], taskSpec, qaSpec, sessionPolicy, sessionLimit)
		if err != nil {
			return err
		}
		out, _ := json.MarshalIndent(plan, "", "  ")
		fmt.Println(string(out))
		return nil
	},
}

var sessionCloseCmd = &cobra.Command{
	Use:   "close [session-id]",
	Short: "Close a session, firing the memory pipeline",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		sess, err := svc.CloseSession(cmd.Context(), args[0], sessionReason)
		if err != nil {
			return err
		}
		fmt.Println(sess.State)
		return nil
	},
}

var sessionValidateCmd = &cobra.Command{
	Use:   "validate [session-id]",
	Short: "Validate a closing session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		sess, err := svc.ValidateSession(cmd.Context(), args[0], sessionReason)
		if err != nil {
			return err
		}
		fmt.Println(sess.State)
		return nil
	},
}

var sessionArchiveCmd = &cobra.Command{
	Use:   "archive [session-id]",
	Short: "Archive a validated session",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		sess, err := svc.ArchiveSession(cmd.Context(), args[0], sessionReason)
		if err != nil {
			return err
		}
		fmt.Println(sess.State)
		return nil
	},
}

var sessionBlockerCount int

var sessionBlockCmd = &cobra.Command{
	Use:   "block [session-id]",
	Short: "Move a session into recovery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		sess, err := svc.MarkSessionBlocked(cmd.Context(), args[0], sessionReason, sessionBlockerCount)
		if err != nil {
			return err
		}
		fmt.Println(sess.State)
		return nil
	},
}

var sessionRecoverCmd = &cobra.Command{
	Use:   "recover [session-id]",
	Short: "Resume a session out of recovery",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		sess, err := svc.RecoverSession(cmd.Context(), args[0], sessionReason)
		if err != nil {
			return err
		}
		fmt.Println(sess.State)
		return nil
	},
}

func init() {
	sessionCreateCmd.Flags().StringVar(&sessionOwner, "owner", "", "session owner")
	sessionCreateCmd.Flags().StringVar(&sessionBranch, "branch", "", "git branch")

	sessionNextCmd.Flags().StringVar(&sessionPolicy, "policy", "parent_validated_children_done", "completion policy")
	sessionNextCmd.Flags().IntVar(&sessionLimit, "limit", 5, "max recommendations")

	sessionCloseCmd.Flags().StringVar(&sessionReason, "reason", "", "transition reason")
	sessionValidateCmd.Flags().StringVar(&sessionReason, "reason", "", "transition reason")
	sessionArchiveCmd.Flags().StringVar(&sessionReason, "reason", "", "transition reason")
	sessionBlockCmd.Flags().StringVar(&sessionReason, "reason", "", "transition reason")
	sessionBlockCmd.Flags().IntVar(&sessionBlockerCount, "blockers", 1, "number of detected blockers")
	sessionRecoverCmd.Flags().StringVar(&sessionReason, "reason", "", "transition reason")

	sessionCmd.AddCommand(sessionCreateCmd, sessionNextCmd, sessionCloseCmd, sessionValidateCmd, sessionArchiveCmd, sessionBlockCmd, sessionRecoverCmd)
}
