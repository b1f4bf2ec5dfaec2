package db

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func openTestDB(t *testing.T) string {
	t.Helper()
	return "sqlite:file:" + strings.ReplaceAll(t.Name(), "/", "_") + "?mode=memory&cache=shared"
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open("  "); err == nil {
		t.Fatal("expected error for empty dsn")
	}
}

func TestMigrateAndLoadPrompts(t *testing.T) {
	conn, err := Open(openTestDB(t))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := ConfigurePool(conn, 1, 1, 0, 0); err != nil {
		t.Fatalf("pool: %v", err)
	}
	if err := Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	path := filepath.Join(t.TempDir(), "prompts.csv")
	csvData := "category,text\nanimals,a cat wearing a hat\nanimals,a dog on a skateboard\nfood, a sad sandwich\n,\n"
	if err := os.WriteFile(path, []byte(csvData), 0o644); err != nil {
		t.Fatalf("write csv: %v", err)
	}

	loaded, err := LoadPromptSuggestions(conn, path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded != 3 {
		t.Fatalf("expected 3 prompts loaded, got %d", loaded)
	}
	if _, err := LoadPromptSuggestions(conn, path); err != nil {
		t.Fatalf("reload: %v", err)
	}

	var count int64
	conn.Model(&PromptSuggestion{}).Count(&count)
	if count != 3 {
		t.Fatalf("expected loading twice to keep 3 rows, got %d", count)
	}

	animals, err := RandomPrompts(conn, "animals", 5)
	if err != nil {
		t.Fatalf("random prompts: %v", err)
	}
	if len(animals) != 2 {
		t.Fatalf("expected 2 animal prompts, got %v", animals)
	}
	picked, err := RandomPrompts(conn, "", 1)
	if err != nil {
		t.Fatalf("random prompts: %v", err)
	}
	if len(picked) != 1 {
		t.Fatalf("expected a single prompt, got %v", picked)
	}
}
