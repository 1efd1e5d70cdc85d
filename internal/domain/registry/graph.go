package registry

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
)

var edgeNamespace = uuid.MustParse("5f0c7f7e-3a57-4c1b-9a0e-64a1a0b2d4c1")

// Vertex references a function by display name and owning system.
type Vertex struct {
	Name     string `json:"f"`
	SystemID string `json:"s"`
}

// Graph is the canonical workflow document: vertices keyed by function id and
// an ordered successor list per vertex. Cycles are allowed.
type Graph struct {
	Vertices map[string]Vertex   `json:"vertices"`
	Adj      map[string][]string `json:"adj"`
}

// Arc is one adjacency entry whose endpoints are both vertices.
type Arc struct {
	From     string
	To       string
	Position int
}

func ParseGraph(raw []byte) (Graph, error) {
	var g Graph
	if len(raw) == 0 {
		return g, fmt.Errorf("empty graph document")
	}
	if err := json.Unmarshal(raw, &g); err != nil {
		return g, fmt.Errorf("decode graph document: %w", err)
	}
	return g, nil
}

func (g Graph) Encode() ([]byte, error) {
	if g.Vertices == nil {
		g.Vertices = map[string]Vertex{}
	}
	if g.Adj == nil {
		g.Adj = map[string][]string{}
	}
	return json.Marshal(g)
}

// FunctionIDs returns the vertex ids in sorted order.
func (g Graph) FunctionIDs() []string {
	out := make([]string, 0, len(g.Vertices))
	for id := range g.Vertices {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

func (g Graph) HasVertex(id string) bool {
	_, ok := g.Vertices[id]
	return ok
}

// Arcs flattens the adjacency map. Sources are visited in sorted order and
// successors in list order; entries with a missing endpoint are skipped.
func (g Graph) Arcs() []Arc {
	froms := make([]string, 0, len(g.Adj))
	for from := range g.Adj {
		froms = append(froms, from)
	}
	sort.Strings(froms)

	var out []Arc
	for _, from := range froms {
		if !g.HasVertex(from) {
			continue
		}
		for pos, to := range g.Adj[from] {
			if !g.HasVertex(to) {
				continue
			}
			out = append(out, Arc{From: from, To: to, Position: pos})
		}
	}
	return out
}

// Touches reports whether functionID is a source or target of any arc.
func (g Graph) Touches(functionID string) (touched bool, arcCount int) {
	for _, a := range g.Arcs() {
		arcCount++
		if a.From == functionID || a.To == functionID {
			touched = true
		}
	}
	return touched, arcCount
}

// EdgeID is stable for a given workflow, endpoint pair and list position.
func EdgeID(workflowID, from, to string, position int) string {
	key := strings.Join([]string{workflowID, from, to, fmt.Sprint(position)}, "|")
	return uuid.NewSHA1(edgeNamespace, []byte(key)).String()
}
