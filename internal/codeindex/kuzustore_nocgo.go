//go:build !cgo

package codeindex

import "errors"

// KuzuStore is unavailable without cgo.
type KuzuStore struct{ MemStore }

// NewKuzuStore reports that the graph backend needs a cgo build.
func NewKuzuStore(string) (*KuzuStore, error) {
	return nil, errors.New("kuzu: backend requires a cgo build")
}
