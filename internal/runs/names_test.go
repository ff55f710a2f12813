package runs

import (
	"regexp"
	"testing"
)

func TestNormalizeRunName(t *testing.T) {
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"simple", "camera one", "camera_one"},
		{"trims", "  front door  ", "front_door"},
		{"collapses whitespace", "a \t  b\nc", "a_b_c"},
		{"strips specials", "lobby!@#$cam", "lobbycam"},
		{"keeps allowed chars", "Cam_1-east", "Cam_1-east"},
		{"empty", "", ""},
		{"only specials", "!!!", ""},
		{"only whitespace", "   ", ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeRunName(tc.in)
			if got != tc.want {
				t.Errorf("NormalizeRunName(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestNormalizeRunNameIsTotal(t *testing.T) {
	valid := regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
	inputs := []string{"héllo wörld", "русский", "a b c", "∆∆∆", "x", "  mixed ! name  "}
	for _, in := range inputs {
		got := NormalizeRunName(in)
		if got != "" && !valid.MatchString(got) {
			t.Errorf("NormalizeRunName(%q) = %q, not in [A-Za-z0-9_-]+", in, got)
		}
	}
}

func TestUniqueRunName(t *testing.T) {
	existing := []string{"cam", "cam_1", "cam_2"}

	if got := UniqueRunName("cam", existing); got != "cam_3" {
		t.Errorf("expected cam_3, got %q", got)
	}
	if got := UniqueRunName("other", existing); got != "other" {
		t.Errorf("expected other, got %q", got)
	}
	if got := UniqueRunName("", existing); got != "" {
		t.Errorf("expected empty result for empty base, got %q", got)
	}

	// Never returns a name already in the set.
	if got := UniqueRunName("cam_1", existing); got == "cam_1" {
		t.Error("UniqueRunName returned a taken name")
	}
}
