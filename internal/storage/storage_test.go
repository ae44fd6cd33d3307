package storage

import "testing"

func TestSeedScriptKey(t *testing.T) {
	key, err := SeedScriptKey("Chinook_Sqlite.sql")
	if err != nil {
		t.Fatalf("SeedScriptKey() error = %v", err)
	}
	if key != "seeds/Chinook_Sqlite.sql" {
		t.Fatalf("SeedScriptKey() = %q", key)
	}

	key, err = SeedScriptKey("/custom/dir/../demo.sql")
	if err != nil {
		t.Fatalf("SeedScriptKey() error = %v", err)
	}
	if key != "custom/demo.sql" {
		t.Fatalf("SeedScriptKey() = %q", key)
	}
}

func TestSeedScriptKeyRejectsInvalidNames(t *testing.T) {
	for _, name := range []string{"", "chinook.db", ".hidden.sql", "../../etc/passwd.sql", "a/b.txt"} {
		if _, err := SeedScriptKey(name); err == nil {
			t.Fatalf("SeedScriptKey(%q) expected error", name)
		}
	}
}
