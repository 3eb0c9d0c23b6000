package testsupport

import (
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
)

// Chip is a fake hwmon directory holding integer attributes.
type Chip struct {
	t   testing.TB
	Dir string
}

// NewChip creates an empty fake hwmon directory.
func NewChip(t testing.TB) *Chip {
	t.Helper()
	return &Chip{t: t, Dir: t.TempDir()}
}

// Path returns the location of attribute name.
func (c *Chip) Path(name string) string {
	return filepath.Join(c.Dir, name)
}

// Set writes value to attribute name, creating it when missing.
func (c *Chip) Set(name string, value int) string {
	c.t.Helper()
	path := c.Path(name)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		c.t.Fatalf("mkdir %s: %v", name, err)
	}
	if err := os.WriteFile(path, []byte(strconv.Itoa(value)+"\n"), 0o644); err != nil {
		c.t.Fatalf("write %s: %v", name, err)
	}
	return path
}

// Get reads attribute name.
func (c *Chip) Get(name string) int {
	c.t.Helper()
	raw, err := os.ReadFile(c.Path(name))
	if err != nil {
		c.t.Fatalf("read %s: %v", name, err)
	}
	v, err := strconv.Atoi(strings.TrimSpace(string(raw)))
	if err != nil {
		c.t.Fatalf("parse %s: %v", name, err)
	}
	return v
}
