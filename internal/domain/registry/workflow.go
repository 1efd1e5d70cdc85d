package registry

import (
	"time"

	"gorm.io/datatypes"
)

type Workflow struct {
	ID        string         `gorm:"column:workflow_id;type:text;primaryKey" json:"workflow_id"`
	SystemID  string         `gorm:"column:system_id;type:text;not null;index" json:"system_id"`
	GroupID   string         `gorm:"column:group_id;type:text;not null;index" json:"group_id"`
	Data      datatypes.JSON `gorm:"column:workflow_data;not null" json:"workflow_data"`
	CreatedAt time.Time      `gorm:"column:created_at;not null" json:"created_at"`
}

func (Workflow) TableName() string { return "workflows" }

// Graph decodes the stored graph document.
func (w *Workflow) Graph() (Graph, error) {
	return ParseGraph(w.Data)
}

// Edges derives the workflow's edge view from its graph document.
func (w *Workflow) Edges() ([]WorkflowEdge, error) {
	g, err := w.Graph()
	if err != nil {
		return nil, err
	}
	arcs := g.Arcs()
	out := make([]WorkflowEdge, 0, len(arcs))
	for _, a := range arcs {
		out = append(out, WorkflowEdge{
			ID:             EdgeID(w.ID, a.From, a.To, a.Position),
			WorkflowID:     w.ID,
			FromFunctionID: a.From,
			ToFunctionID:   a.To,
			GroupID:        w.GroupID,
			CreatedAt:      w.CreatedAt,
		})
	}
	return out, nil
}

// WorkflowEdge is a derived, never stored, view of one adjacency entry.
type WorkflowEdge struct {
	ID             string    `json:"edge_id"`
	WorkflowID     string    `json:"workflow_id"`
	FromFunctionID string    `json:"from_function_id"`
	ToFunctionID   string    `json:"to_function_id"`
	GroupID        string    `json:"group_id"`
	CreatedAt      time.Time `json:"created_at"`
}
