// Package causal holds the causal network of market variables, the expected
// response baselines, and the event-study engine that validates whether an
// event category truly moves a market variable.
package causal

import (
	"encoding/csv"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	apperrors "tremor/internal/errors"
)

// EdgeInfo holds the Granger statistics attached to a directed edge.
type EdgeInfo struct {
	Source     string  `json:"source"`
	Target     string  `json:"target"`
	FStatistic float64 `json:"f_statistic"`
	PValue     float64 `json:"p_value"`
	LagWeeks   int     `json:"lag"`
}

// Graph is the process-wide causal network. Load replaces the whole edge set
// atomically: readers hold the previous snapshot until the swap, so they can
// never observe a half-loaded graph.
type Graph struct {
	mu     sync.RWMutex
	snap   *graphSnapshot
	logger *slog.Logger
}

type graphSnapshot struct {
	nodes    []string
	nodeSet  map[string]bool
	out      map[string][]string
	in       map[string][]string
	edges    map[string]map[string]*EdgeInfo
	edgeList []EdgeInfo
}

func emptySnapshot() *graphSnapshot {
	return &graphSnapshot{
		nodeSet: make(map[string]bool),
		out:     make(map[string][]string),
		in:      make(map[string][]string),
		edges:   make(map[string]map[string]*EdgeInfo),
	}
}

// NewGraph creates an empty causal graph
func NewGraph(logger *slog.Logger) *Graph {
	if logger == nil {
		logger = slog.Default()
	}
	return &Graph{
		snap:   emptySnapshot(),
		logger: logger.With(slog.String("component", "causal_graph")),
	}
}

// Load reads the causal network from a GraphML file or a Granger results CSV
// and atomically replaces the current graph.
func (g *Graph) Load(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return apperrors.NewNotFoundError(fmt.Sprintf("network file %s", path))
		}
		return apperrors.NewStorageError(fmt.Sprintf("read network file %s", path), err)
	}

	var snap *graphSnapshot
	switch strings.ToLower(filepath.Ext(path)) {
	case ".graphml":
		snap, err = parseGraphML(data)
	case ".csv":
		snap, err = parseGrangerCSV(data)
	default:
		return fmt.Errorf("%w: %s", apperrors.ErrUnsupportedFormat, filepath.Ext(path))
	}
	if err != nil {
		return err
	}

	g.mu.Lock()
	g.snap = snap
	g.mu.Unlock()

	g.logger.Info("causal network loaded",
		slog.String("path", path),
		slog.Int("nodes", len(snap.nodes)),
		slog.Int("edges", len(snap.edgeList)),
	)
	return nil
}

func (g *Graph) snapshot() *graphSnapshot {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.snap
}

// Downstream returns all nodes this node has direct edges to, in load order.
// Empty for a node absent from the graph.
func (g *Graph) Downstream(node string) []string {
	snap := g.snapshot()
	return append([]string(nil), snap.out[node]...)
}

// Upstream returns all nodes with direct edges to this node, in load order.
func (g *Graph) Upstream(node string) []string {
	snap := g.snapshot()
	return append([]string(nil), snap.in[node]...)
}

// Edge returns the metadata for a directed edge, or nil if absent.
func (g *Graph) Edge(source, target string) *EdgeInfo {
	snap := g.snapshot()
	if targets, ok := snap.edges[source]; ok {
		if info, ok := targets[target]; ok {
			cp := *info
			return &cp
		}
	}
	return nil
}

// HasNode reports whether the node appears in the graph.
func (g *Graph) HasNode(node string) bool {
	return g.snapshot().nodeSet[node]
}

// Nodes returns all node identifiers in load order.
func (g *Graph) Nodes() []string {
	snap := g.snapshot()
	return append([]string(nil), snap.nodes...)
}

// AllEdges returns every edge with its metadata, in load order.
func (g *Graph) AllEdges() []EdgeInfo {
	snap := g.snapshot()
	return append([]EdgeInfo(nil), snap.edgeList...)
}

// TransmissionPath returns the shortest directed path from source to target
// by edge count, or nil if either endpoint is absent or target is
// unreachable. A direct edge always beats a multi-hop route.
func (g *Graph) TransmissionPath(source, target string) []string {
	snap := g.snapshot()
	if !snap.nodeSet[source] || !snap.nodeSet[target] {
		return nil
	}
	if source == target {
		return []string{source}
	}

	// BFS over out-edges
	prev := map[string]string{source: ""}
	queue := []string{source}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		for _, next := range snap.out[current] {
			if _, seen := prev[next]; seen {
				continue
			}
			prev[next] = current
			if next == target {
				return rebuildPath(prev, source, target)
			}
			queue = append(queue, next)
		}
	}
	return nil
}

func rebuildPath(prev map[string]string, source, target string) []string {
	var path []string
	for node := target; node != ""; node = prev[node] {
		path = append([]string{node}, path...)
		if node == source {
			break
		}
	}
	return path
}

// addEdge inserts or overwrites one directed edge, keeping at most one edge
// per ordered pair and preserving first-seen ordering of nodes and adjacency.
func (s *graphSnapshot) addEdge(info EdgeInfo) {
	s.addNode(info.Source)
	s.addNode(info.Target)

	if s.edges[info.Source] == nil {
		s.edges[info.Source] = make(map[string]*EdgeInfo)
	}
	if existing, ok := s.edges[info.Source][info.Target]; ok {
		*existing = info
		for i := range s.edgeList {
			if s.edgeList[i].Source == info.Source && s.edgeList[i].Target == info.Target {
				s.edgeList[i] = info
				break
			}
		}
		return
	}

	s.edges[info.Source][info.Target] = &info
	s.edgeList = append(s.edgeList, info)
	s.out[info.Source] = append(s.out[info.Source], info.Target)
	s.in[info.Target] = append(s.in[info.Target], info.Source)
}

func (s *graphSnapshot) addNode(node string) {
	if !s.nodeSet[node] {
		s.nodeSet[node] = true
		s.nodes = append(s.nodes, node)
	}
}

// parseGrangerCSV builds a graph from Granger causality results.
// Expected columns: cause, effect, f_statistic, p_value, lag.
// Missing numeric fields default to f_statistic=0, p_value=1, lag=1.
func parseGrangerCSV(data []byte) (*graphSnapshot, error) {
	reader := csv.NewReader(strings.NewReader(string(data)))
	header, err := reader.Read()
	if err != nil {
		return nil, apperrors.NewParsingError("granger csv has no header row", err)
	}

	col := make(map[string]int, len(header))
	for i, name := range header {
		col[strings.TrimSpace(strings.ToLower(name))] = i
	}
	causeIdx, okCause := col["cause"]
	effectIdx, okEffect := col["effect"]
	if !okCause || !okEffect {
		return nil, apperrors.NewParsingError("granger csv missing cause/effect columns", nil)
	}

	snap := emptySnapshot()
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, apperrors.NewParsingError("malformed granger csv row", err)
		}

		info := EdgeInfo{
			Source:     row[causeIdx],
			Target:     row[effectIdx],
			FStatistic: floatField(row, col, "f_statistic", 0),
			PValue:     floatField(row, col, "p_value", 1),
			LagWeeks:   intField(row, col, "lag", 1),
		}
		snap.addEdge(info)
	}
	return snap, nil
}

func floatField(row []string, col map[string]int, name string, fallback float64) float64 {
	idx, ok := col[name]
	if !ok || idx >= len(row) || strings.TrimSpace(row[idx]) == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(row[idx]), 64)
	if err != nil {
		return fallback
	}
	return v
}

func intField(row []string, col map[string]int, name string, fallback int) int {
	idx, ok := col[name]
	if !ok || idx >= len(row) || strings.TrimSpace(row[idx]) == "" {
		return fallback
	}
	v, err := strconv.Atoi(strings.TrimSpace(row[idx]))
	if err != nil {
		return fallback
	}
	return v
}

// graphML mirrors the subset of the GraphML schema the loader understands:
// attribute keys, nodes, and directed edges with data values.
type graphML struct {
	Keys  []graphMLKey `xml:"key"`
	Graph struct {
		Nodes []struct {
			ID string `xml:"id,attr"`
		} `xml:"node"`
		Edges []struct {
			Source string        `xml:"source,attr"`
			Target string        `xml:"target,attr"`
			Data   []graphMLData `xml:"data"`
		} `xml:"edge"`
	} `xml:"graph"`
}

type graphMLKey struct {
	ID       string `xml:"id,attr"`
	For      string `xml:"for,attr"`
	AttrName string `xml:"attr.name,attr"`
}

type graphMLData struct {
	Key   string `xml:"key,attr"`
	Value string `xml:",chardata"`
}

func parseGraphML(data []byte) (*graphSnapshot, error) {
	var doc graphML
	if err := xml.Unmarshal(data, &doc); err != nil {
		return nil, apperrors.NewParsingError("malformed graphml document", err)
	}

	attrName := make(map[string]string, len(doc.Keys))
	for _, key := range doc.Keys {
		attrName[key.ID] = key.AttrName
	}

	snap := emptySnapshot()
	for _, node := range doc.Graph.Nodes {
		snap.addNode(node.ID)
	}
	for _, edge := range doc.Graph.Edges {
		info := EdgeInfo{
			Source:     edge.Source,
			Target:     edge.Target,
			FStatistic: 0,
			PValue:     1,
			LagWeeks:   1,
		}
		for _, d := range edge.Data {
			switch attrName[d.Key] {
			case "f_statistic":
				if v, err := strconv.ParseFloat(strings.TrimSpace(d.Value), 64); err == nil {
					info.FStatistic = v
				}
			case "p_value":
				if v, err := strconv.ParseFloat(strings.TrimSpace(d.Value), 64); err == nil {
					info.PValue = v
				}
			case "lag":
				if v, err := strconv.Atoi(strings.TrimSpace(d.Value)); err == nil {
					info.LagWeeks = v
				}
			}
		}
		snap.addEdge(info)
	}
	return snap, nil
}
