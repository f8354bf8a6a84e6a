// SPDX-License-Identifier: MPL-2.0

package parse

import (
	"context"
	"fmt"
	"slices"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// Normalize returns the syntax tree of a block as a flat list of tokens:
// node types, opening and closing markers and leaf text. Comments,
// whitespace, line breaks, the block's common indentation and the quote
// style of string literals do not show in the result, so two blocks that
// differ only in formatting normalize to equal lists.
func Normalize(ctx context.Context, lines []string) ([]string, error) {
	src := []byte(strings.Join(dedent(lines), "\n") + "\n")

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing block: %w", err)
	}
	defer tree.Close()

	root := tree.RootNode()
	if root.HasError() {
		return nil, firstError(root)
	}

	var tokens []string
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		switch {
		case n.Type() == "comment":
		case n.ChildCount() == 0:
			tokens = append(tokens, n.Type()+":"+leafText(n, src))
		default:
			tokens = append(tokens, "("+n.Type())
			for i := range int(n.ChildCount()) {
				visit(n.Child(i))
			}
			tokens = append(tokens, ")")
		}
	}
	visit(root)
	return tokens, nil
}

// leafText drops the quotes of string delimiters and keeps their prefix,
// so 'a', "a" and """a""" compare equal while b"a" does not.
func leafText(n *sitter.Node, src []byte) string {
	text := n.Content(src)
	switch n.Type() {
	case "string_start", "string_end":
		return strings.ToLower(strings.TrimRight(text, `"'`))
	}
	return text
}

// dedent removes the leading whitespace shared by every non-blank line
// and empties blank ones.
func dedent(lines []string) []string {
	prefix := ""
	first := true
	for _, l := range lines {
		if strings.TrimSpace(l) == "" {
			continue
		}
		indent := l[:len(l)-len(strings.TrimLeft(l, " \t"))]
		if first {
			prefix, first = indent, false
			continue
		}
		for !strings.HasPrefix(indent, prefix) {
			prefix = prefix[:len(prefix)-1]
		}
	}

	out := slices.Clone(lines)
	for i, l := range out {
		if strings.TrimSpace(l) == "" {
			out[i] = ""
			continue
		}
		out[i] = strings.TrimPrefix(l, prefix)
	}
	return out
}
