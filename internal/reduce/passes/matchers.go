package passes

import tree_sitter "github.com/tree-sitter/go-tree-sitter"

// EmptyFunctionBodyMatcher is the matcher spec.md §8 scenario 3 names:
// "match function_item -> empty". Any function_item (Rust) or
// function_declaration (Go) node, at any depth, is offered for
// wholesale deletion; the dichotomy loop decides how many
// of the matched functions actually get removed in a given attempt.
func EmptyFunctionBodyMatcher(fullInput []byte, node *tree_sitter.Node) ([]byte, bool) {
	if node.Kind() != "function_item" && node.Kind() != "function_declaration" {
		return nil, false
	}
	return nil, true
}
