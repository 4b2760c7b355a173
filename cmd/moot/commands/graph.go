package commands

import (
	"context"

	"github.com/dyluth/moot/internal/printer"
	"github.com/dyluth/moot/internal/resolver"
	"github.com/spf13/cobra"
)

var graphSessionID string

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Print a session's knowledge graph",
	RunE:  runGraph,
}

func init() {
	graphCmd.Flags().StringVarP(&graphSessionID, "session", "s", "", "Session ID (required)")
	graphCmd.MarkFlagRequired("session")
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := connect(cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	nodes, err := client.ListNodes(ctx, graphSessionID)
	if err != nil {
		return err
	}
	edges, err := client.ListEdges(ctx, graphSessionID)
	if err != nil {
		return err
	}

	printer.Info("Nodes (%d):\n", len(nodes))
	for _, n := range nodes {
		printer.Printf("  [%s] %s (%s, by %s)", resolver.ShortRef(n.ID), n.Label, n.NodeType, n.CreatedBy)
		if n.Description != "" {
			printer.Printf(": %s", n.Description)
		}
		printer.Println()
	}

	printer.Info("Edges (%d):\n", len(edges))
	for _, e := range edges {
		printer.Printf("  [%s] -%s-> [%s]\n",
			resolver.ShortRef(e.SourceNodeID), e.EdgeType, resolver.ShortRef(e.TargetNodeID))
	}
	return nil
}
