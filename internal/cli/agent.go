package cli

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tnsengimana/autonomous-teams/internal/store"
)

var (
	agentCmd = &cobra.Command{
		Use:   "agent",
		Short: "Manage agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	agentAddCmd = &cobra.Command{
		Use:   "add",
		Short: "Create an agent",
		RunE:  runAgentAdd,
	}

	agentListCmd = &cobra.Command{
		Use:   "list",
		Short: "List agents",
		RunE:  runAgentList,
	}
)

func init() {
	agentAddCmd.Flags().String("name", "", "Agent name")
	agentAddCmd.Flags().String("owner", "", "Owning entity: team:<id> or aide:<id>")
	agentAddCmd.Flags().String("parent", "", "Lead agent id (empty = this agent is a lead)")
	agentCmd.AddCommand(agentAddCmd)
	agentCmd.AddCommand(agentListCmd)
	rootCmd.AddCommand(agentCmd)
}

func runAgentAdd(cmd *cobra.Command, args []string) error {
	name, _ := cmd.Flags().GetString("name")
	ownerRef, _ := cmd.Flags().GetString("owner")
	parent, _ := cmd.Flags().GetString("parent")
	if name == "" {
		return fmt.Errorf("--name is required")
	}
	owner, err := parseOwnerRef(ownerRef)
	if err != nil {
		return err
	}

	_, s, err := loadStore()
	if err != nil {
		return err
	}
	defer s.Close()

	a := &store.Agent{Name: name, ParentID: parent}
	switch owner.Kind {
	case store.OwnerTeam:
		a.TeamID = owner.ID
	case store.OwnerAide:
		a.AideID = owner.ID
	}
	created, err := s.CreateAgent(a)
	if err != nil {
		return err
	}
	fmt.Printf("Agent created: %s (%s)\n", color.GreenString(created.Name), created.ID)
	return nil
}

func runAgentList(cmd *cobra.Command, args []string) error {
	_, s, err := loadStore()
	if err != nil {
		return err
	}
	defer s.Close()

	agents, err := s.ListAgents()
	if err != nil {
		return err
	}
	if len(agents) == 0 {
		fmt.Println("No agents.")
		return nil
	}
	for _, a := range agents {
		role := "lead"
		if !a.IsLead() {
			role = "subordinate of " + a.ParentID
		}
		owner, _ := a.Owner()
		fmt.Printf("%s  %s  [%s, %s, owner %s]\n",
			a.ID, color.CyanString(a.Name), a.Status, role, owner)
	}
	return nil
}
