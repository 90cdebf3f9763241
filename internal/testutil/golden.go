// Package testutil provides small test-only helpers shared across patosc's
// packages.
package testutil

import (
	"os"
	"testing"

	"gopkg.in/yaml.v3"
)

// LoadYAML reads the YAML file at path and unmarshals it into dst, failing
// the test on any read or decode error. Used to drive golden-fixture tables
// (internal/mangle's mangling table) without hand-writing every case as a
// Go literal.
func LoadYAML(t *testing.T, path string, dst any) {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	if err := yaml.Unmarshal(data, dst); err != nil {
		t.Fatalf("unmarshal %s: %v", path, err)
	}
}
