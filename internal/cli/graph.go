package cli

import (
	"encoding/json"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/tnsengimana/autonomous-teams/internal/graph"
	"github.com/tnsengimana/autonomous-teams/internal/provider"
)

var (
	graphCmd = &cobra.Command{
		Use:   "graph",
		Short: "Inspect the knowledge graph",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}

	graphQueryCmd = &cobra.Command{
		Use:   "query",
		Short: "Query an owner's graph",
		RunE:  runGraphQuery,
	}

	graphTypesCmd = &cobra.Command{
		Use:   "types",
		Short: "List an owner's node and edge types",
		RunE:  runGraphTypes,
	}

	graphSeedCmd = &cobra.Command{
		Use:   "seed",
		Short: "Generate an initial type vocabulary for an owner",
		RunE:  runGraphSeed,
	}
)

func init() {
	graphQueryCmd.Flags().String("owner", "", "Owner namespace: team:<id> or aide:<id>")
	graphQueryCmd.Flags().String("type", "", "Restrict to a node type")
	graphQueryCmd.Flags().String("search", "", "Substring to match against node names")
	graphQueryCmd.Flags().Int("limit", 50, "Maximum nodes to return")
	graphQueryCmd.Flags().Bool("json", false, "Output machine-readable JSON")
	graphTypesCmd.Flags().String("owner", "", "Owner namespace: team:<id> or aide:<id>")
	graphSeedCmd.Flags().String("owner", "", "Owner namespace: team:<id> or aide:<id>")
	graphSeedCmd.Flags().String("domain", "", "What this owner works on, in a sentence or two")
	graphCmd.AddCommand(graphQueryCmd)
	graphCmd.AddCommand(graphTypesCmd)
	graphCmd.AddCommand(graphSeedCmd)
	rootCmd.AddCommand(graphCmd)
}

func runGraphQuery(cmd *cobra.Command, args []string) error {
	ownerRef, _ := cmd.Flags().GetString("owner")
	nodeType, _ := cmd.Flags().GetString("type")
	search, _ := cmd.Flags().GetString("search")
	limit, _ := cmd.Flags().GetInt("limit")
	asJSON, _ := cmd.Flags().GetBool("json")

	owner, err := parseOwnerRef(ownerRef)
	if err != nil {
		return err
	}
	_, s, err := loadStore()
	if err != nil {
		return err
	}
	defer s.Close()

	result, err := graph.NewStore(s.DB()).Query(owner.String(), graph.QueryFilter{
		NodeType:   nodeType,
		SearchTerm: search,
		Limit:      limit,
	})
	if err != nil {
		return err
	}
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(result)
	}

	if len(result.Nodes) == 0 {
		fmt.Println("No matching nodes.")
		return nil
	}
	names := make(map[string]string, len(result.Nodes))
	for _, n := range result.Nodes {
		names[n.ID] = n.Name
		fmt.Printf("%s %s\n", color.CyanString(n.TypeName), n.Name)
		for k, v := range n.Properties {
			fmt.Printf("  %s: %v\n", k, v)
		}
	}
	for _, e := range result.Edges {
		fmt.Printf("%s -[%s]-> %s\n", names[e.SourceID], color.YellowString(e.TypeName), names[e.TargetID])
	}
	return nil
}

func runGraphSeed(cmd *cobra.Command, args []string) error {
	ownerRef, _ := cmd.Flags().GetString("owner")
	domain, _ := cmd.Flags().GetString("domain")
	owner, err := parseOwnerRef(ownerRef)
	if err != nil {
		return err
	}
	if domain == "" {
		return fmt.Errorf("a --domain description is required")
	}

	cfg, s, err := loadStore()
	if err != nil {
		return err
	}
	defer s.Close()
	if cfg.Provider.APIKey == "" {
		return fmt.Errorf("no API key configured (set TEAMD_API_KEY)")
	}
	llm := provider.NewOpenAIProvider(cfg.Provider.APIKey, cfg.Provider.APIBase, cfg.Model.Name)

	g := graph.NewStore(s.DB())
	seeder := graph.NewSeeder(g, llm, nil)
	if err := seeder.SeedTypes(cmd.Context(), owner.String(), domain); err != nil {
		return err
	}

	nodeTypes, err := g.ListNodeTypes(owner.String())
	if err != nil {
		return err
	}
	edgeTypes, err := g.ListEdgeTypes(owner.String())
	if err != nil {
		return err
	}
	fmt.Printf("Seeded %s: %d node types, %d edge types\n",
		color.CyanString(owner.String()), len(nodeTypes), len(edgeTypes))
	return nil
}

func runGraphTypes(cmd *cobra.Command, args []string) error {
	ownerRef, _ := cmd.Flags().GetString("owner")
	owner, err := parseOwnerRef(ownerRef)
	if err != nil {
		return err
	}
	_, s, err := loadStore()
	if err != nil {
		return err
	}
	defer s.Close()

	g := graph.NewStore(s.DB())
	nodeTypes, err := g.ListNodeTypes(owner.String())
	if err != nil {
		return err
	}
	edgeTypes, err := g.ListEdgeTypes(owner.String())
	if err != nil {
		return err
	}

	fmt.Println("Node types:")
	for _, t := range nodeTypes {
		fmt.Printf("  %s - %s\n", color.CyanString(t.Name), t.Description)
	}
	fmt.Println("Edge types:")
	for _, t := range edgeTypes {
		fmt.Printf("  %s - %s\n", color.YellowString(t.Name), t.Description)
	}
	return nil
}
