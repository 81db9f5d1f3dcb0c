package version

import (
	"strings"
	"testing"
)

func TestVersion(t *testing.T) {
	v := Version()
	if v == "" {
		t.Fatal("version must not be empty")
	}
	if strings.ContainsAny(v, " \n") {
		t.Errorf("version %q contains whitespace", v)
	}
	if !strings.HasPrefix(BuildID(), v) {
		t.Errorf("BuildID() = %q, want prefix %q", BuildID(), v)
	}
}
