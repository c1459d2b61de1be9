package registry

import (
	"testing"
)

func TestRegistry_AddAndLookup(t *testing.T) {
	r := New(nil)

	d, created := r.Add("192.168.1.20", "AA:BB:CC", "H6159")
	if !created {
		t.Fatal("first Add should create the device")
	}
	if d.ID() != "AA:BB:CC" || d.SKU() != "H6159" {
		t.Errorf("identity = %q/%q", d.ID(), d.SKU())
	}

	again, created := r.Add("192.168.1.20", "", "H6160")
	if created || again != d {
		t.Fatal("second Add should return the existing device")
	}
	if d.ID() != "AA:BB:CC" {
		t.Errorf("empty id must not overwrite, got %q", d.ID())
	}
	if d.SKU() != "H6160" {
		t.Errorf("sku = %q, want updated H6160", d.SKU())
	}

	tests := []struct {
		name string
		key  string
		ok   bool
	}{
		{"by_ip", "192.168.1.20", true},
		{"by_id", "AA:BB:CC", true},
		{"by_id_case_insensitive", "aa:bb:cc", true},
		{"unknown", "192.168.1.21", false},
		{"empty", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := r.Lookup(tt.key)
			if tt.ok {
				if err != nil || got != d {
					t.Errorf("Lookup(%q) = %v, %v", tt.key, got, err)
				}
				return
			}
			if err != ErrNotFound {
				t.Errorf("Lookup(%q) err = %v, want ErrNotFound", tt.key, err)
			}
		})
	}
}

func TestRegistry_AllSorted(t *testing.T) {
	r := New(nil)
	r.Add("10.0.0.3", "", "")
	r.Add("10.0.0.1", "", "")
	r.Add("10.0.0.2", "", "")

	all := r.All()
	if len(all) != 3 || r.Len() != 3 {
		t.Fatalf("got %d devices", len(all))
	}
	for i, want := range []string{"10.0.0.1", "10.0.0.2", "10.0.0.3"} {
		if all[i].IP() != want {
			t.Errorf("All()[%d] = %s, want %s", i, all[i].IP(), want)
		}
	}
	if r.Get("10.0.0.9") != nil {
		t.Error("Get on unknown ip should be nil")
	}
}
