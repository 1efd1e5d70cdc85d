package testutil

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	types "github.com/yungbote/alohomora/internal/domain"
)

func SeedGroup(tb testing.TB, ctx context.Context, tx *gorm.DB, id string) *types.Group {
	tb.Helper()
	g := &types.Group{ID: id, Name: id, CreatedAt: time.Now().UTC()}
	if err := tx.WithContext(ctx).Create(g).Error; err != nil {
		tb.Fatalf("seed group: %v", err)
	}
	return g
}

func SeedSystem(tb testing.TB, ctx context.Context, tx *gorm.DB, name, groupID, callbackURL string) *types.System {
	tb.Helper()
	s := &types.System{
		ID:        uuid.NewString(),
		Name:      name,
		PublicKey: "pk-" + name,
		CreatedAt: time.Now().UTC(),
	}
	if groupID != "" {
		s.GroupID = &groupID
	}
	if callbackURL != "" {
		s.CallbackURL = &callbackURL
	}
	if err := tx.WithContext(ctx).Create(s).Error; err != nil {
		tb.Fatalf("seed system: %v", err)
	}
	return s
}

func SeedFunction(tb testing.TB, ctx context.Context, tx *gorm.DB, sys *types.System, name string) *types.Function {
	tb.Helper()
	f := &types.Function{
		ID:        uuid.NewString(),
		SystemID:  sys.ID,
		GroupID:   sys.Group(),
		Name:      name,
		URL:       "http://" + name,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(f).Error; err != nil {
		tb.Fatalf("seed function: %v", err)
	}
	return f
}

// SeedWorkflow stores a workflow over fns with adj as its adjacency map.
func SeedWorkflow(tb testing.TB, ctx context.Context, tx *gorm.DB, sys *types.System, fns []*types.Function, adj map[string][]string) *types.Workflow {
	tb.Helper()
	g := types.Graph{Vertices: map[string]types.Vertex{}, Adj: adj}
	for _, f := range fns {
		g.Vertices[f.ID] = types.Vertex{Name: f.Name, SystemID: f.SystemID}
	}
	raw, err := g.Encode()
	if err != nil {
		tb.Fatalf("encode graph: %v", err)
	}
	w := &types.Workflow{
		ID:        uuid.NewString(),
		SystemID:  sys.ID,
		GroupID:   sys.Group(),
		Data:      raw,
		CreatedAt: time.Now().UTC(),
	}
	if err := tx.WithContext(ctx).Create(w).Error; err != nil {
		tb.Fatalf("seed workflow: %v", err)
	}
	return w
}
