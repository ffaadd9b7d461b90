package menudb

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

const testMenuJSON = `[
  {
    "name": "Classic Burger",
    "category": "Entree",
    "price": 8.99,
    "ingredients": "beef patty, bun, lettuce, tomato",
    "nutrition": {"calories": 650, "protein_g": 32.0, "fat_g": 35.0, "carbs_g": 48.0, "sodium_mg": 980}
  },
  {
    "name": "Garden Salad",
    "category": "Side",
    "price": 4.49,
    "ingredients": "lettuce, tomato, cucumber",
    "nutrition": {"calories": 120, "protein_g": 3.0, "fat_g": 7.0, "carbs_g": 12.0, "sodium_mg": 210}
  },
  {
    "name": "Grilled Chicken Sandwich",
    "category": "Entree",
    "price": 9.49,
    "ingredients": "chicken breast, bun, pickles",
    "nutrition": {"calories": 520, "protein_g": 38.0, "fat_g": 18.0, "carbs_g": 44.0, "sodium_mg": 870}
  }
]`

func openSeeded(t *testing.T) *DB {
	t.Helper()

	dir := t.TempDir()
	jsonPath := filepath.Join(dir, "menu.json")
	if err := os.WriteFile(jsonPath, []byte(testMenuJSON), 0o600); err != nil {
		t.Fatalf("write menu json: %v", err)
	}

	db, err := Open(Config{DSN: "file:" + filepath.Join(dir, "menu.db")})
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := db.Seed(context.Background(), jsonPath); err != nil {
		t.Fatalf("Seed() error = %v", err)
	}
	return db
}

func TestSeedAndListTables(t *testing.T) {
	t.Parallel()

	db := openSeeded(t)
	tables, err := db.ListTables(context.Background())
	if err != nil {
		t.Fatalf("ListTables() error = %v", err)
	}
	if len(tables) != 2 || tables[0] != "menu" || tables[1] != "nutrition_facts" {
		t.Fatalf("ListTables() = %#v", tables)
	}
}

func TestSchemaNamedTable(t *testing.T) {
	t.Parallel()

	db := openSeeded(t)
	ddl, err := db.Schema(context.Background(), []string{"menu"})
	if err != nil {
		t.Fatalf("Schema() error = %v", err)
	}
	if ddl == "" {
		t.Fatal("expected non-empty DDL")
	}
}

func TestSchemaUnknownTable(t *testing.T) {
	t.Parallel()

	db := openSeeded(t)
	_, err := db.Schema(context.Background(), []string{"orders"})
	if !errors.Is(err, ErrTableUnknown) {
		t.Fatalf("Schema() error = %v, want ErrTableUnknown", err)
	}
}

func TestRunSelectsEntrees(t *testing.T) {
	t.Parallel()

	db := openSeeded(t)
	rows, err := db.Run(context.Background(),
		`SELECT name FROM menu WHERE category = 'Entree' ORDER BY name`)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 entrees, got %d: %#v", len(rows), rows)
	}
	if rows[0]["name"] != "Classic Burger" || rows[1]["name"] != "Grilled Chicken Sandwich" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

func TestRunJoinsNutrition(t *testing.T) {
	t.Parallel()

	db := openSeeded(t)
	rows, err := db.Run(context.Background(),
		`SELECT m.name, n.calories FROM menu m JOIN nutrition_facts n ON n.item_id = m.id WHERE n.calories < 200`)
	if err != nil {
		t.Fatalf("Run() error = %v", err)
	}
	if len(rows) != 1 || rows[0]["name"] != "Garden Salad" {
		t.Fatalf("unexpected rows: %#v", rows)
	}
}

func TestRunEmptyQuery(t *testing.T) {
	t.Parallel()

	db := openSeeded(t)
	_, err := db.Run(context.Background(), "   ")
	if !errors.Is(err, ErrEmptyQuery) {
		t.Fatalf("Run() error = %v, want ErrEmptyQuery", err)
	}
}

func TestCheckSyntax(t *testing.T) {
	t.Parallel()

	db := openSeeded(t)
	if err := db.CheckSyntax(context.Background(), "SELECT name FROM menu"); err != nil {
		t.Fatalf("CheckSyntax() error = %v", err)
	}
	if err := db.CheckSyntax(context.Background(), "SELECT nope FROM menu"); err == nil {
		t.Fatal("expected error for unknown column")
	}
}
