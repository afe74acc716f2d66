// graphcheck validates causal graph and baseline files from the command
// line: it loads them the same way the server does, prints a summary, and
// optionally resolves a transmission path between two nodes.
package main

import (
	"flag"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"tremor/internal/causal"
	"tremor/pkg/contracts/domain"
)

func main() {
	graphPath := flag.String("graph", "data/causal_network.graphml", "causal network file (.graphml or .csv)")
	baselinesPath := flag.String("baselines", "", "IRF baselines JSON file (optional)")
	source := flag.String("source", "", "path query: source node")
	target := flag.String("target", "", "path query: target node")
	verbose := flag.Bool("v", false, "print every edge")
	flag.Parse()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	graph := causal.NewGraph(logger)
	if err := graph.Load(*graphPath); err != nil {
		fmt.Fprintf(os.Stderr, "failed to load graph %s: %v\n", *graphPath, err)
		os.Exit(1)
	}

	nodes := graph.Nodes()
	edges := graph.AllEdges()
	sort.Strings(nodes)
	fmt.Printf("graph: %s\n", *graphPath)
	fmt.Printf("nodes: %d (%s)\n", len(nodes), strings.Join(nodes, ", "))
	fmt.Printf("edges: %d\n", len(edges))

	if *verbose {
		sort.Slice(edges, func(i, j int) bool {
			if edges[i].Source != edges[j].Source {
				return edges[i].Source < edges[j].Source
			}
			return edges[i].Target < edges[j].Target
		})
		for _, e := range edges {
			fmt.Printf("  %s -> %s  F=%.3f p=%.4f lag=%dw\n",
				e.Source, e.Target, e.FStatistic, e.PValue, e.LagWeeks)
		}
	}

	if *baselinesPath != "" {
		baselines := causal.NewBaselines(logger)
		if err := baselines.Load(*baselinesPath); err != nil {
			fmt.Fprintf(os.Stderr, "failed to load baselines %s: %v\n", *baselinesPath, err)
			os.Exit(1)
		}
		fmt.Printf("baselines: %s ok\n", *baselinesPath)

		// Flag edges with no baseline so calibration gaps are visible.
		missing := 0
		for _, e := range edges {
			if baselines.ExpectedDirection(e.Source, e.Target) == domain.DirectionUnknown {
				missing++
				if *verbose {
					fmt.Printf("  no baseline for %s -> %s\n", e.Source, e.Target)
				}
			}
		}
		fmt.Printf("edges without baseline: %d\n", missing)
	}

	if *source != "" || *target != "" {
		if *source == "" || *target == "" {
			fmt.Fprintln(os.Stderr, "both -source and -target are required for a path query")
			os.Exit(2)
		}
		path := graph.TransmissionPath(*source, *target)
		if len(path) == 0 {
			fmt.Printf("path: none from %s to %s\n", *source, *target)
			os.Exit(3)
		}
		fmt.Printf("path: %s\n", strings.Join(path, " -> "))
	}
}
