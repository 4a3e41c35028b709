// Package graph turns the crawl edge list into a directed graph for
// downstream consumers such as the API and the graph artifact.
package graph

import (
	"strings"

	"github.com/JakeFAU/jobgraph-crawler/internal/crawler"
)

// NodeKind classifies a node by the page it stands for.
type NodeKind string

// Node kinds.
const (
	NodeKindSeed    NodeKind = "seed"
	NodeKindListing NodeKind = "listing"
	NodeKindJob     NodeKind = "job"
)

// Node is one distinct URL among the edge endpoints.
type Node struct {
	ID        string   `json:"id"`
	Kind      NodeKind `json:"kind"`
	InDegree  int      `json:"in_degree"`
	OutDegree int      `json:"out_degree"`
}

// Edge is a directed link between two nodes. Weight counts how many crawl
// edges it stands for and is always 1 unless duplicates were merged.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
	Weight int    `json:"weight"`
}

// Graph is the assembled crawl graph.
type Graph struct {
	Seed  string `json:"seed"`
	Nodes []Node `json:"nodes"`
	Edges []Edge `json:"edges"`
}

// Options tunes assembly.
type Options struct {
	// MergeDuplicates folds repeated (source, target) pairs into one weighted edge.
	MergeDuplicates bool
	// ViewMarker identifies job pages; empty means crawler.DefaultViewMarker.
	ViewMarker string
}

// Assemble builds the graph for a crawl. Nodes appear in first-seen order
// walking the edges; edges keep crawl order.
func Assemble(seed string, edges []crawler.Edge, opts Options) Graph {
	viewMarker := opts.ViewMarker
	if viewMarker == "" {
		viewMarker = crawler.DefaultViewMarker
	}

	g := Graph{
		Seed:  seed,
		Nodes: []Node{},
		Edges: make([]Edge, 0, len(edges)),
	}
	nodeIndex := make(map[string]int)
	addNode := func(id string) int {
		if idx, ok := nodeIndex[id]; ok {
			return idx
		}
		nodeIndex[id] = len(g.Nodes)
		g.Nodes = append(g.Nodes, Node{ID: id, Kind: classify(id, seed, viewMarker)})
		return len(g.Nodes) - 1
	}

	type pair struct{ source, target string }
	edgeIndex := make(map[pair]int)
	for _, e := range edges {
		src := addNode(e.Source)
		dst := addNode(e.Target)
		if opts.MergeDuplicates {
			key := pair{e.Source, e.Target}
			if idx, ok := edgeIndex[key]; ok {
				g.Edges[idx].Weight++
				continue
			}
			edgeIndex[key] = len(g.Edges)
		}
		g.Edges = append(g.Edges, Edge{Source: e.Source, Target: e.Target, Weight: 1})
		g.Nodes[src].OutDegree++
		g.Nodes[dst].InDegree++
	}
	return g
}

// FromResult assembles the graph of a finished crawl.
func FromResult(result crawler.Result, opts Options) Graph {
	return Assemble(result.Seed, result.Edges, opts)
}

// Node returns the node with the given ID.
func (g Graph) Node(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

func classify(id, seed, viewMarker string) NodeKind {
	switch {
	case id == seed:
		return NodeKindSeed
	case strings.Contains(id, viewMarker):
		return NodeKindJob
	default:
		return NodeKindListing
	}
}
