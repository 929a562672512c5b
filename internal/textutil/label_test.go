package textutil

import "testing"

func TestTitleCase(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"person", "Person"},
		{"license_plate", "License Plate"},
		{"delivery-truck", "Delivery Truck"},
		{"  front.door  ", "Front Door"},
		{"", "Unknown"},
		{"---", "Unknown"},
	}
	for _, tc := range cases {
		if got := TitleCase(tc.in); got != tc.want {
			t.Errorf("TitleCase(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}

func TestSanitizeToken(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Front Door", "front_door"},
		{"cam/01", "cam_01"},
		{"", "unknown"},
		{"__", "unknown"},
	}
	for _, tc := range cases {
		if got := SanitizeToken(tc.in); got != tc.want {
			t.Errorf("SanitizeToken(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
