package scheduler

import "testing"

// TestOrder tests that Order places every task after its dependencies.
func TestOrder(t *testing.T) {
	engine, _, _ := newTestEngine(t, base)
	at := future(0)

	engine.Schedule(ScheduleRequest{Name: "extract", ProgramPath: "/bin/true", ScheduledAt: at})
	engine.Schedule(ScheduleRequest{Name: "transform", ProgramPath: "/bin/true", ScheduledAt: at + 1000, DependsOn: []string{"extract"}})
	engine.Schedule(ScheduleRequest{Name: "load", ProgramPath: "/bin/true", ScheduledAt: at + 2000, DependsOn: []string{"extract", "transform"}})
	engine.Schedule(ScheduleRequest{Name: "independent", ProgramPath: "/bin/true", ScheduledAt: at})

	order, err := engine.Order()
	if err != nil {
		t.Fatalf("Order failed: %v", err)
	}
	if len(order) != 4 {
		t.Fatalf("Order returned %d tasks, want 4: %v", len(order), order)
	}

	pos := make(map[string]int, len(order))
	for i, name := range order {
		pos[name] = i
	}
	if pos["extract"] > pos["transform"] {
		t.Errorf("extract after transform in %v", order)
	}
	if pos["transform"] > pos["load"] {
		t.Errorf("transform after load in %v", order)
	}
}

// TestOrderEmpty tests ordering an empty graph.
func TestOrderEmpty(t *testing.T) {
	engine, _, _ := newTestEngine(t, base)

	order, err := engine.Order()
	if err != nil {
		t.Fatalf("Order failed: %v", err)
	}
	if len(order) != 0 {
		t.Errorf("Order = %v, want empty", order)
	}
}
