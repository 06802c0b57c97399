package fixture

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"interestsync/internal/store"
	"interestsync/internal/store/memory"
)

func TestParse(t *testing.T) {
	t.Run("records with and without ids", func(t *testing.T) {
		content := []byte("collections:\n  propuestas:\n    - id: P1\n      titulo: Backend\n  likes:\n    - postulanteId: A\n      propuestaId: P1\n")
		fx, err := Parse(content)
		if err != nil {
			t.Fatalf("expected no error, got %v", err)
		}
		proposals := fx.Collections["propuestas"]
		if len(proposals) != 1 || proposals[0].ID != "P1" {
			t.Fatalf("unexpected proposals: %#v", proposals)
		}
		if _, ok := proposals[0].Fields["id"]; ok {
			t.Fatalf("id should not be stored as a field")
		}
		likes := fx.Collections["likes"]
		if len(likes) != 1 || likes[0].ID != "" {
			t.Fatalf("unexpected likes: %#v", likes)
		}
	})

	t.Run("invalid yaml", func(t *testing.T) {
		_, err := Parse([]byte("collections: [unclosed"))
		if !errors.Is(err, ErrInvalidYAML) {
			t.Fatalf("expected ErrInvalidYAML, got %v", err)
		}
	})

	t.Run("unknown top level key", func(t *testing.T) {
		_, err := Parse([]byte("docs:\n  likes: []\n"))
		if !errors.Is(err, ErrInvalidYAML) {
			t.Fatalf("expected ErrInvalidYAML, got %v", err)
		}
	})

	t.Run("no collections", func(t *testing.T) {
		_, err := Parse([]byte("collections: {}\n"))
		if !errors.Is(err, ErrNoCollections) {
			t.Fatalf("expected ErrNoCollections, got %v", err)
		}
	})

	t.Run("numeric id", func(t *testing.T) {
		_, err := Parse([]byte("collections:\n  usuarios:\n    - id: 7\n"))
		if !errors.Is(err, ErrInvalidID) {
			t.Fatalf("expected ErrInvalidID, got %v", err)
		}
	})

	t.Run("bad field name", func(t *testing.T) {
		_, err := Parse([]byte("collections:\n  usuarios:\n    - id: U1\n      \"bad name\": x\n"))
		if !errors.Is(err, store.ErrInvalidArgument) {
			t.Fatalf("expected ErrInvalidArgument, got %v", err)
		}
	})
}

func TestWritesOrderedByCollection(t *testing.T) {
	fx := &Fixture{Collections: map[string][]Record{
		"usuarios":   {{ID: "E1", Fields: map[string]any{"nombre": "Acme"}}},
		"likes":      {{Fields: map[string]any{"postulanteId": "A"}}},
		"propuestas": {{ID: "P1"}, {ID: "P2"}},
	}}

	writes := fx.Writes()
	var got []string
	for _, w := range writes {
		if w.Kind != store.WriteCreate {
			t.Fatalf("expected create writes, got %s", w.Kind)
		}
		got = append(got, w.Collection+"/"+w.ID)
	}
	want := []string{"likes/", "propuestas/P1", "propuestas/P2", "usuarios/E1"}
	if len(got) != len(want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, got)
		}
	}
}

func TestLoadTestdata(t *testing.T) {
	ctx := context.Background()
	fx, err := ParseFile(filepath.Join("testdata", "tindevs.yaml"))
	if err != nil {
		t.Fatalf("parse: %v", err)
	}

	db := memory.New()
	loaded, err := Load(ctx, db, fx, 2)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != 6 {
		t.Fatalf("expected 6 documents, got %d", loaded)
	}
	if db.Count("likes") != 2 {
		t.Fatalf("expected 2 likes, got %d", db.Count("likes"))
	}

	proposal, err := db.Get(ctx, "propuestas", "P1")
	if err != nil {
		t.Fatalf("get proposal: %v", err)
	}
	if proposal.Fields["titulo"] != "Backend Role" {
		t.Fatalf("unexpected proposal: %#v", proposal.Fields)
	}

	likes, err := db.Query(ctx, "likes", []store.Filter{store.Eq("propuestaId", "P1")}, 0)
	if err != nil || len(likes) != 1 {
		t.Fatalf("query likes: %v %d", err, len(likes))
	}
	ts, ok := likes[0].Fields["timestamp"].(string)
	if !ok {
		t.Fatalf("expected timestamp string, got %#v", likes[0].Fields["timestamp"])
	}
	parsed, err := time.Parse(time.RFC3339, ts)
	if err != nil || parsed.Year() != 2025 {
		t.Fatalf("unexpected timestamp %q: %v", ts, err)
	}
}

func TestLoadRejectsDuplicateIDs(t *testing.T) {
	ctx := context.Background()
	fx := &Fixture{Collections: map[string][]Record{
		"usuarios": {{ID: "E1", Fields: map[string]any{"nombre": "Acme"}}},
	}}
	db := memory.New()
	if _, err := Load(ctx, db, fx, 10); err != nil {
		t.Fatalf("first load: %v", err)
	}
	loaded, err := Load(ctx, db, fx, 10)
	if err == nil {
		t.Fatal("expected duplicate id error")
	}
	if loaded != 0 {
		t.Fatalf("expected nothing loaded, got %d", loaded)
	}
}

func TestLoadRequiresBatchSize(t *testing.T) {
	fx := &Fixture{Collections: map[string][]Record{"likes": {{}}}}
	if _, err := Load(context.Background(), memory.New(), fx, 0); err == nil {
		t.Fatal("expected error for zero batch size")
	}
}
