// Package testutil holds fixtures shared by package tests.
package testutil

import (
	"bytes"
	_ "embed"
	"testing"

	"github.com/roach88/evpatch/internal/catalog"
)

//go:embed testdata/catalog.json
var catalogJSON []byte

// CatalogJSON returns the fixture instruction catalog document.
func CatalogJSON() []byte {
	return append([]byte(nil), catalogJSON...)
}

// Catalog loads the fixture instruction catalog. It covers the
// instructions the tests need: flag and character conditions, event flag
// and character state commands, boss health bars, and the two default
// initializers 2000[00] and 2000[06].
func Catalog(t testing.TB) *catalog.Catalog {
	t.Helper()
	c, err := catalog.Load(bytes.NewReader(catalogJSON))
	if err != nil {
		t.Fatalf("load fixture catalog: %v", err)
	}
	return c
}
