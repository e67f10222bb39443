package migrations

import "testing"

func TestListOrderAndIDs(t *testing.T) {
	t.Parallel()

	want := []string{
		"000001_create_delivery_attempts",
		"000002_create_notification_events",
	}

	got := List()
	if len(got) != len(want) {
		t.Fatalf("len(List()) = %d, want %d", len(got), len(want))
	}
	for i, m := range got {
		if m.ID != want[i] {
			t.Fatalf("List()[%d].ID = %q, want %q", i, m.ID, want[i])
		}
		if m.Migrate == nil || m.Rollback == nil {
			t.Fatalf("migration %q must define Migrate and Rollback", m.ID)
		}
	}
}
