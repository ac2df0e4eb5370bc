package raw

import "testing"

func TestGetPrefixAndDefault(t *testing.T) {
	t.Setenv("LOG_LEVEL", " info ")
	c := New().Prefix("LOG_")
	if got := c.Get("LEVEL", "debug"); got != "info" {
		t.Fatalf("Get = %q, want info", got)
	}
	if got := c.Get("FORMAT", "console"); got != "console" {
		t.Fatalf("Get default = %q", got)
	}
}

func TestGetBool(t *testing.T) {
	c := New().Prefix("B_")
	t.Setenv("B_YES", "YES")
	t.Setenv("B_ONE", "1")
	t.Setenv("B_NO", "off")
	cases := []struct {
		key  string
		def  bool
		want bool
	}{
		{"YES", false, true},
		{"ONE", false, true},
		{"NO", true, false},
		{"MISSING", true, true},
	}
	for _, tc := range cases {
		if got := c.GetBool(tc.key, tc.def); got != tc.want {
			t.Fatalf("GetBool(%q) = %v, want %v", tc.key, got, tc.want)
		}
	}
}

func TestGetInt(t *testing.T) {
	c := New().Prefix("N_")
	t.Setenv("N_OK", " 12 ")
	t.Setenv("N_NEG", "-4")
	t.Setenv("N_BAD", "1x")
	if got := c.GetInt("OK", 0); got != 12 {
		t.Fatalf("GetInt ok = %d", got)
	}
	if got := c.GetInt("NEG", 7); got != 7 {
		t.Fatalf("GetInt negative -> default = %d", got)
	}
	if got := c.GetInt("BAD", 3); got != 3 {
		t.Fatalf("GetInt bad -> default = %d", got)
	}
}
