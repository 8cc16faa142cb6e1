// Package tree projects a flat result set into a hierarchy keyed by
// URL path segments.
package tree

import (
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/keithven/seo-checker/internal/seo"
)

// Stats are rolled-up status counts for a node and its descendants.
type Stats struct {
	Good    int `json:"good"`
	Warning int `json:"warning"`
	Error   int `json:"error"`
	Total   int `json:"total"`
}

// Node is one level of the path hierarchy. The root's path is "/".
// Nodes are derived state, rebuilt on every render and never persisted.
type Node struct {
	Name     string           `json:"name"`
	Path     string           `json:"path"`
	Children map[string]*Node `json:"children"`
	URLs     []seo.PageResult `json:"urls"`
	Stats    Stats            `json:"stats"`
}

func newNode(name, path string) *Node {
	return &Node{
		Name:     name,
		Path:     path,
		Children: make(map[string]*Node),
		URLs:     make([]seo.PageResult, 0),
	}
}

// Build projects results into a tree. Each result is attached to the
// node of its deepest path segment only; results whose URL fails to
// parse are skipped with a warning (they stay in the flat set, just not
// in the tree). Build is stateless and safe to re-invoke on every
// filter or render cycle.
func Build(results []seo.PageResult, log *zap.Logger) *Node {
	if log == nil {
		log = zap.NewNop()
	}

	root := newNode("/", "/")

	for i := range results {
		u, err := url.Parse(results[i].URL)
		if err != nil || u.Host == "" {
			log.Warn("skipping unparseable URL in tree projection",
				zap.String("url", results[i].URL))
			continue
		}

		node := root
		path := ""
		for _, segment := range strings.Split(u.Path, "/") {
			if segment == "" {
				continue
			}
			path += "/" + segment
			child, ok := node.Children[segment]
			if !ok {
				child = newNode(segment, path)
				node.Children[segment] = child
			}
			node = child
		}

		node.URLs = append(node.URLs, results[i])
	}

	rollup(root)
	return root
}

// rollup computes stats bottom-up: a node's totals are its own URLs'
// statuses plus every descendant's. Unknown status values bucket into
// warning.
func rollup(n *Node) Stats {
	var s Stats
	for i := range n.URLs {
		switch seo.NormalizeStatus(string(n.URLs[i].Status)) {
		case seo.StatusGood:
			s.Good++
		case seo.StatusError:
			s.Error++
		default:
			s.Warning++
		}
		s.Total++
	}

	for _, child := range n.Children {
		cs := rollup(child)
		s.Good += cs.Good
		s.Warning += cs.Warning
		s.Error += cs.Error
		s.Total += cs.Total
	}

	n.Stats = s
	return s
}
