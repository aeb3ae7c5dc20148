package phone

import "testing"

func TestNormalizeE164(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"4155551234", "+14155551234", true},
		{"5551234567", "+15551234567", true},
		{"+14155551234", "+14155551234", true},
		{"(415) 555-1234", "+14155551234", true},
		{"+44 20 7946 0958", "+442079460958", true},
		{"442079460958", "+442079460958", true},
		{"notaphone", "", false},
		{"", "", false},
		{"+0123456789", "", false},       // country code cannot start with 0
		{"123", "", false},               // too short
		{"+1234567890123456", "", false}, // too long
	}
	for _, tc := range cases {
		got, ok := NormalizeE164(tc.in)
		if ok != tc.ok {
			t.Errorf("NormalizeE164(%q) ok = %v, want %v", tc.in, ok, tc.ok)
			continue
		}
		if ok && got != tc.want {
			t.Errorf("NormalizeE164(%q) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
