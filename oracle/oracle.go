// Package oracle supplies the content graph the game is played on: the
// initial start/target pair, the legal next steps from a node, and a shortest
// connecting path for post-game recaps. The coordinator never calls it; only
// the HTTP API does, on behalf of browsing clients.
package oracle

import (
	"context"
	"strings"
)

// Node is one element of the content graph. Paths alternate between actors
// and the movies connecting them.
type Node struct {
	ID   string `json:"id"`
	Kind string `json:"kind"` // "actor" or "movie"
	Name string `json:"name"`
}

// Oracle hands out start/target pairs and next-step candidates. NextChoices
// is bounded; implementations decide how many candidates to offer.
type Oracle interface {
	InitialPair(ctx context.Context) (start, target Node, err error)
	NextChoices(ctx context.Context, from Node) ([]Node, error)
	ShortestPath(ctx context.Context, start, target Node) ([]Node, error)
}

// NodeID derives a stable identifier from a node's kind and name, so two
// players offered the same candidate report the same id.
func NodeID(kind, name string) string {
	slug := strings.ToLower(strings.TrimSpace(name))
	slug = strings.Join(strings.Fields(slug), "-")
	return kind + ":" + slug
}
