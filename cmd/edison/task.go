package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/edisonhq/edison/internal/entity"
	"github.com/edisonhq/edison/internal/workflow"
)

var taskCmd = &cobra.Command{
	Use:   "task",
	Short: "Manage tasks",
}

var (
	taskTitle    string
	taskType     string
	taskPriority int
	taskWave     int
	taskSlug     string
	taskSession  string
	taskReason   string
)

var taskCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a task in todo",
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		task, err := svc.CreateTask(cmd.Context(), workflow.NewTaskParams{
			Priority:  taskPriority,
			Wave:      taskWave,
			Slug:      taskSlug,
			Title:     taskTitle,
			Type:      entity.TaskType(taskType),
			SessionID: taskSession,
		})
		if err != nil {
			return err
		}
		fmt.Println(task.ID)
		return nil
	},
}

var taskClaimCmd = &cobra.Command{
	Use:   "claim [task-id]",
	Short: "Claim a task (todo -> wip)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		task, err := svc.ClaimTask(cmd.Context(), args[0], taskSession, taskReason)
		if err != nil {
			return err
		}
		fmt.Println(task.State)
		return nil
	},
}

var taskReadyCmd = &cobra.Command{
	Use:   "ready [task-id]",
	Short: "Mark a task done (wip -> done)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		task, err := svc.ReadyTask(cmd.Context(), args[0], taskRoundDirFlag, taskReason)
		if err != nil {
			return err
		}
		fmt.Println(task.State)
		return nil
	},
}

var (
	taskRoundDirFlag string
	taskUnblockTo    string
)

var taskBlockForce bool

var taskBlockCmd = &cobra.Command{
	Use:   "block [task-id]",
	Short: "Move a task into blocked, recording why",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		task, err := svc.BlockTask(cmd.Context(), args[0], taskReason, taskBlockForce)
		if err != nil {
			return err
		}
		fmt.Println(task.State)
		return nil
	},
}

var taskUnblockCmd = &cobra.Command{
	Use:   "unblock [task-id]",
	Short: "Exit a blocked task back to todo or wip",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		to := entity.TaskTodo
		if taskUnblockTo == "wip" {
			to = entity.TaskWIP
		}
		task, err := svc.UnblockTask(cmd.Context(), args[0], to, taskReason)
		if err != nil {
			return err
		}
		fmt.Println(task.State)
		return nil
	},
}

var taskPromoteCmd = &cobra.Command{
	Use:   "promote [task-id]",
	Short: "Promote a task to validated, gated on bundle approval",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := buildService()
		if err != nil {
			return err
		}
		task, err := svc.PromoteTask(cmd.Context(), args[0], taskRoundDirFlag, taskReason)
		if err != nil {
			return err
		}
		fmt.Println(task.State)
		return nil
	},
}

func init() {
	taskCreateCmd.Flags().StringVar(&taskTitle, "title", "", "task title")
	taskCreateCmd.Flags().StringVar(&taskType, "type", "feature", "task type: feature|bug|chore")
	taskCreateCmd.Flags().IntVar(&taskPriority, "priority", 0, "priority slot")
	taskCreateCmd.Flags().IntVar(&taskWave, "wave", 0, "wave number")
	taskCreateCmd.Flags().StringVar(&taskSlug, "slug", "", "identifier slug")
	taskCreateCmd.Flags().StringVar(&taskSession, "session", "", "owning session id")

	taskClaimCmd.Flags().StringVar(&taskSession, "session", "", "claiming session id")
	taskClaimCmd.Flags().StringVar(&taskReason, "reason", "", "transition reason")
	taskReadyCmd.Flags().StringVar(&taskRoundDirFlag, "round-dir", "", "round directory to check required evidence against")
	taskReadyCmd.Flags().StringVar(&taskReason, "reason", "", "transition reason")
	taskPromoteCmd.Flags().StringVar(&taskRoundDirFlag, "round-dir", "", "round directory carrying the bundle approval marker")
	taskPromoteCmd.Flags().StringVar(&taskReason, "reason", "", "transition reason")
	taskBlockCmd.Flags().StringVar(&taskReason, "reason", "", "blocker reason (soft-blocked if empty; use --force to override)")
	taskBlockCmd.Flags().BoolVar(&taskBlockForce, "force", false, "override the soft block on a missing blocker reason")
	taskUnblockCmd.Flags().StringVar(&taskUnblockTo, "to", "todo", "destination state: todo|wip")
	taskUnblockCmd.Flags().StringVar(&taskReason, "reason", "", "transition reason")

	taskCmd.AddCommand(taskCreateCmd, taskClaimCmd, taskReadyCmd, taskPromoteCmd, taskBlockCmd, taskUnblockCmd)
}
