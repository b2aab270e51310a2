package persona

import "testing"

func TestMemoryStoreFindByID(t *testing.T) {
	store := NewMemoryStore(Seed())

	got, ok := store.FindByID("compeq-assistant")
	if !ok {
		t.Fatal("expected seeded persona to be found")
	}
	if got.Instruction == "" {
		t.Fatal("expected seeded persona to carry an instruction")
	}

	if _, ok := store.FindByID("missing"); ok {
		t.Fatal("expected missing persona lookup to fail")
	}
}

func TestMemoryStoreListIsCopy(t *testing.T) {
	store := NewMemoryStore(Seed())
	list := store.List()
	list[0].Name = "changed"

	if store.List()[0].Name == "changed" {
		t.Fatal("List must not expose internal storage")
	}
}
