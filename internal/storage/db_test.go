package storage

import (
	"testing"
)

func TestSaveAndLoadDialogs(t *testing.T) {
	dir := t.TempDir()

	db, err := Open(dir)
	if err != nil {
		t.Fatal(err)
	}

	if err := db.SaveDialog("42", []byte(`[{"textContent":"hi"}]`)); err != nil {
		t.Fatal(err)
	}
	if err := db.SaveDialog("g1", []byte(`[]`)); err != nil {
		t.Fatal(err)
	}
	// Overwrite replaces, not appends.
	if err := db.SaveDialog("42", []byte(`[{"textContent":"hi"},{"textContent":"again"}]`)); err != nil {
		t.Fatal(err)
	}
	if err := db.Close(); err != nil {
		t.Fatal(err)
	}

	// Reopen and verify the state survived.
	db, err = Open(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	dialogs, err := db.LoadDialogs()
	if err != nil {
		t.Fatal(err)
	}
	if len(dialogs) != 2 {
		t.Fatalf("expected 2 dialogs, got %d", len(dialogs))
	}
	if string(dialogs["42"]) != `[{"textContent":"hi"},{"textContent":"again"}]` {
		t.Fatalf("dialog 42 = %s", dialogs["42"])
	}
}

func TestDeleteDialog(t *testing.T) {
	db, err := Open(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	if err := db.SaveDialog("d1", []byte(`[]`)); err != nil {
		t.Fatal(err)
	}
	if err := db.DeleteDialog("d1"); err != nil {
		t.Fatal(err)
	}
	// Deleting a missing dialog is not an error.
	if err := db.DeleteDialog("d1"); err != nil {
		t.Fatal(err)
	}

	dialogs, err := db.LoadDialogs()
	if err != nil {
		t.Fatal(err)
	}
	if len(dialogs) != 0 {
		t.Fatalf("expected empty store, got %d dialogs", len(dialogs))
	}
}
