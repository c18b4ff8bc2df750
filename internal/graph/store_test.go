package graph

import (
	"strings"
	"testing"
)

// TestStoreInsert tests insertion and duplicate rejection.
func TestStoreInsert(t *testing.T) {
	store := NewStore()

	if err := store.Insert(NewTask("a", "/bin/true", 1000, nil)); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	err := store.Insert(NewTask("a", "/bin/false", 2000, nil))
	if err == nil {
		t.Fatal("Expected error inserting duplicate name")
	}
	if !strings.Contains(err.Error(), "already exists") {
		t.Errorf("Error %q does not mention existing task", err)
	}

	if store.Len() != 1 {
		t.Errorf("Len = %d, want 1", store.Len())
	}

	// Original record must be untouched by the failed insert.
	task, ok := store.Get("a")
	if !ok {
		t.Fatal("Get(a) returned not found")
	}
	if task.ProgramPath != "/bin/true" || task.ScheduledAt != 1000 {
		t.Errorf("Task mutated by failed insert: %+v", task)
	}
}

// TestStoreRemove tests removal and absent-name failure.
func TestStoreRemove(t *testing.T) {
	store := NewStore()
	store.Insert(NewTask("a", "/bin/true", 1000, nil))

	task, err := store.Remove("a")
	if err != nil {
		t.Fatalf("Remove failed: %v", err)
	}
	if task.Name != "a" {
		t.Errorf("Removed task name = %q, want a", task.Name)
	}

	if _, err := store.Remove("a"); err == nil {
		t.Fatal("Expected error removing absent task")
	}

	// Name is reusable after removal.
	if err := store.Insert(NewTask("a", "/bin/true", 2000, nil)); err != nil {
		t.Fatalf("Re-insert after removal failed: %v", err)
	}
}

// TestStoreLinkUnlink tests that edges stay mirrored in both directions.
func TestStoreLinkUnlink(t *testing.T) {
	store := NewStore()
	a := NewTask("a", "/bin/true", 1000, nil)
	b := NewTask("b", "/bin/true", 2000, nil)
	store.Insert(a)
	store.Insert(b)

	store.Link(a, b)

	if _, ok := a.Dependents["b"]; !ok {
		t.Error("a.Dependents missing b after Link")
	}
	if _, ok := b.DependsOn["a"]; !ok {
		t.Error("b.DependsOn missing a after Link")
	}
	checkMirror(t, store)

	store.Unlink(a, b)

	if len(a.Dependents) != 0 || len(b.DependsOn) != 0 {
		t.Error("Edge not fully removed by Unlink")
	}
	checkMirror(t, store)

	// Unlinking a missing edge is a no-op.
	store.Unlink(a, b)
	checkMirror(t, store)
}

// TestTaskClone tests that clones are independent of the original.
func TestTaskClone(t *testing.T) {
	task := NewTask("a", "/bin/true", 1000, []string{"-v"})
	task.DependsOn["x"] = struct{}{}
	task.Dependents["y"] = struct{}{}

	cp := task.Clone()
	cp.Parameters[0] = "changed"
	delete(cp.DependsOn, "x")
	delete(cp.Dependents, "y")

	if task.Parameters[0] != "-v" {
		t.Error("Clone shares Parameters backing array")
	}
	if _, ok := task.DependsOn["x"]; !ok {
		t.Error("Clone shares DependsOn map")
	}
	if _, ok := task.Dependents["y"]; !ok {
		t.Error("Clone shares Dependents map")
	}
}

// checkMirror verifies B ∈ A.Dependents ⇔ A ∈ B.DependsOn for all pairs,
// and that no edge names an absent task.
func checkMirror(t *testing.T, store *Store) {
	t.Helper()

	for _, task := range store.Tasks() {
		for depName := range task.DependsOn {
			dep, ok := store.Get(depName)
			if !ok {
				t.Errorf("Task %q depends on absent %q", task.Name, depName)
				continue
			}
			if _, ok := dep.Dependents[task.Name]; !ok {
				t.Errorf("Mirror violated: %q in %q.DependsOn but %q not in %q.Dependents",
					depName, task.Name, task.Name, depName)
			}
		}
		for depName := range task.Dependents {
			dependent, ok := store.Get(depName)
			if !ok {
				t.Errorf("Task %q has absent dependent %q", task.Name, depName)
				continue
			}
			if _, ok := dependent.DependsOn[task.Name]; !ok {
				t.Errorf("Mirror violated: %q in %q.Dependents but %q not in %q.DependsOn",
					depName, task.Name, task.Name, depName)
			}
		}
	}
}
