package roster

import "testing"

func TestRoster_Find(t *testing.T) {
	r := New(newTestParser().Parse("H\nAna,Medicina,Pedro,Laura\nLuis,Derecho,Pedrito\n"))
	pedro := r.Guests()[0]

	tests := []struct {
		name   string
		term   string
		wantID string
		found  bool
	}{
		{"lowercase_substring", "pedro", pedro.ID, true},
		{"first_in_roster_order", "PED", pedro.ID, true},
		{"exact_id_any_case", "std2g1" + pedro.ID[len("STD1G1"):], r.Guests()[2].ID, true},
		{"surrounding_space", "  laura ", r.Guests()[1].ID, true},
		{"no_match", "maria", "", false},
		{"empty_term", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g, ok := r.Find(tt.term)
			if ok != tt.found {
				t.Fatalf("expected found=%v, got %v", tt.found, ok)
			}
			if ok && g.ID != tt.wantID {
				t.Errorf("expected %s, got %s", tt.wantID, g.ID)
			}
		})
	}
}

func TestRoster_SearchAndLookup(t *testing.T) {
	r := New(newTestParser().Parse("H\nAna,Medicina,Pedro,Laura\nLuis,Derecho,Pedrito\n"))

	if got := len(r.Search("ped")); got != 2 {
		t.Errorf("expected 2 matches, got %d", got)
	}
	if got := len(r.Search("")); got != 3 {
		t.Errorf("expected whole roster, got %d", got)
	}
	laura := r.Guests()[1]
	if g, ok := r.Guest(laura.ID); !ok || g.Name != "Laura" {
		t.Errorf("lookup by id failed: %+v %v", g, ok)
	}

	var empty *Roster
	if empty.Len() != 0 || empty.Guests() != nil {
		t.Error("nil roster should behave as empty")
	}
	if _, ok := empty.Find("x"); ok {
		t.Error("nil roster should not match")
	}
}
