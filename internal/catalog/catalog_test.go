package catalog

import (
	"testing"
)

func TestCatalogComplete(t *testing.T) {
	names := Names()
	if len(names) != len(All()) {
		t.Fatalf("Names/All length mismatch: %d vs %d", len(names), len(All()))
	}

	seen := make(map[string]bool)
	for _, name := range names {
		if seen[name] {
			t.Errorf("duplicate tool name %q", name)
		}
		seen[name] = true

		tool, ok := Get(name)
		if !ok {
			t.Errorf("Get(%q) failed for listed tool", name)
		}
		if tool.Description == "" {
			t.Errorf("tool %q has no description", name)
		}
		if tool.InputSchema["type"] != "object" {
			t.Errorf("tool %q schema is not an object", name)
		}
	}
}

func TestGetUnknown(t *testing.T) {
	if _, ok := Get("no_such_tool"); ok {
		t.Error("expected Get to fail for unknown tool")
	}
}

func TestIndexSearch(t *testing.T) {
	index, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}
	defer index.Close()

	count, err := index.Count()
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != uint64(len(All())) {
		t.Errorf("expected %d indexed tools, got %d", len(All()), count)
	}

	names, err := index.Search("substitution variables", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(names) == 0 {
		t.Fatal("expected hits for 'substitution variables'")
	}
	if !containsName(names, "get_substitution_variables") {
		t.Errorf("expected get_substitution_variables in %v", names)
	}
}

func TestIndexSearchEmptyQuery(t *testing.T) {
	index, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}
	defer index.Close()

	names, err := index.Search("", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(names) != 0 {
		t.Errorf("expected no hits for empty query, got %v", names)
	}
}

func TestIndexSearchLimit(t *testing.T) {
	index, err := NewIndex()
	if err != nil {
		t.Fatalf("NewIndex failed: %v", err)
	}
	defer index.Close()

	names, err := index.Search("data", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(names) > 2 {
		t.Errorf("expected at most 2 hits, got %d", len(names))
	}
}

func containsName(list []string, target string) bool {
	for _, s := range list {
		if s == target {
			return true
		}
	}
	return false
}
