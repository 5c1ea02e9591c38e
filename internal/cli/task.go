package cli

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tnsengimana/autonomous-teams/internal/store"
)

var (
	taskCmd = &cobra.Command{
		Use:   "task",
		Short: "Manage the task queue",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	taskAddCmd = &cobra.Command{
		Use:   "add",
		Short: "Queue a task for an agent",
		RunE:  runTaskAdd,
	}

	taskListCmd = &cobra.Command{
		Use:   "list",
		Short: "List an agent's tasks",
		RunE:  runTaskList,
	}
)

func init() {
	taskAddCmd.Flags().String("agent", "", "Agent id the task is assigned to")
	taskAddCmd.Flags().String("text", "", "Task instruction")
	taskListCmd.Flags().String("agent", "", "Agent id")
	taskListCmd.Flags().String("status", "", "Filter by status (pending, in_progress, completed, failed)")
	taskListCmd.Flags().Int("limit", 20, "Maximum tasks to show")
	taskCmd.AddCommand(taskAddCmd)
	taskCmd.AddCommand(taskListCmd)
	rootCmd.AddCommand(taskCmd)
}

func runTaskAdd(cmd *cobra.Command, args []string) error {
	agentID, _ := cmd.Flags().GetString("agent")
	text, _ := cmd.Flags().GetString("text")
	text = strings.TrimSpace(text)
	if agentID == "" || text == "" {
		return fmt.Errorf("--agent and --text are required")
	}

	_, s, err := loadStore()
	if err != nil {
		return err
	}
	defer s.Close()

	agent, err := s.GetAgent(agentID)
	if err != nil {
		return err
	}
	owner, err := agent.Owner()
	if err != nil {
		return err
	}
	task, err := s.EnqueueTask(owner, agent.ID, "", text, store.SourceUser)
	if err != nil {
		return err
	}
	fmt.Printf("Task queued: %s\n", color.GreenString(task.TaskID))
	return nil
}

func runTaskList(cmd *cobra.Command, args []string) error {
	agentID, _ := cmd.Flags().GetString("agent")
	status, _ := cmd.Flags().GetString("status")
	limit, _ := cmd.Flags().GetInt("limit")
	if agentID == "" {
		return fmt.Errorf("--agent is required")
	}

	_, s, err := loadStore()
	if err != nil {
		return err
	}
	defer s.Close()

	tasks, err := s.ListTasks(agentID, status, limit)
	if err != nil {
		return err
	}
	if len(tasks) == 0 {
		fmt.Println("No tasks.")
		return nil
	}
	for _, t := range tasks {
		line := fmt.Sprintf("%s  [%s]  %s", t.TaskID, t.Status, t.Instruction)
		switch t.Status {
		case store.TaskCompleted:
			fmt.Println(color.GreenString(line))
		case store.TaskFailed:
			fmt.Println(color.RedString(line))
			if t.ErrorText != "" {
				fmt.Printf("      error: %s\n", t.ErrorText)
			}
		default:
			fmt.Println(line)
		}
	}
	return nil
}
