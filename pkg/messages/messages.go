// Package messages wires the client and server message catalogs into a
// registry using a Name:Id table.
package messages

import (
	"bytes"
	_ "embed"
	"io"

	"github.com/HugKitten/KRelay/pkg/messages/client"
	"github.com/HugKitten/KRelay/pkg/messages/server"
	"github.com/HugKitten/KRelay/pkg/protocol"
)

// DefaultTable is the id table shipped with the relay
//
//go:embed packets.txt
var DefaultTable []byte

// Namespaces returns the catalogs in lookup order: client first, then server
func Namespaces() []protocol.Namespace {
	return []protocol.Namespace{client.Namespace(), server.Namespace()}
}

// NewRegistry builds a sealed registry from table. A nil table uses DefaultTable.
func NewRegistry(table io.Reader) (*protocol.Registry, error) {
	if table == nil {
		table = bytes.NewReader(DefaultTable)
	}
	return protocol.Build(table, Namespaces()...)
}
