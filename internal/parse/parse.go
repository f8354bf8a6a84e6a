// SPDX-License-Identifier: MPL-2.0

// Package parse locates named Python functions, classes, methods and
// assignments in source text and returns the exact lines of each one.
//
// Elements are addressed by dotted path ("Umbrella.open"). The empty
// name denotes the whole file and never requires parsing. A block starts
// at the first decorator of a definition and ends at its last non-blank
// line; nested definitions close before the scope that encloses them.
// Assignments to a plain name are elements at module and class scope
// ("TIMEOUT", "Umbrella.size"), never inside a function body.
package parse

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"slices"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// WholeFile is the element name that denotes every line of a file.
const WholeFile = ""

// DefaultCacheSize is the number of parsed files kept by a Locator.
const DefaultCacheSize = 128

// ErrSyntax is returned when an element is requested from source text
// that does not parse.
var ErrSyntax = errors.New("syntax error")

type (
	// Block is the lines of one element, or ElementNotFound.
	Block struct {
		Lines []string
		Found bool
	}

	// SyntaxError reports the first position at which the text failed to
	// parse. Line and Column are 1-based.
	SyntaxError struct {
		Line   int
		Column int
	}

	// Locator finds elements in Python source. It is safe for concurrent
	// use and caches the parsed index of recently seen texts.
	Locator struct {
		cache *lru.Cache[[sha256.Size]byte, *index]
	}

	// index is the parsed form of one text.
	index struct {
		lines []string
		spans map[string]span
		err   error
	}

	// span is an inclusive range of 0-based line numbers.
	span struct {
		start, end int
	}
)

// ElementNotFound marks a requested element that does not exist in the text.
var ElementNotFound = Block{}

// Error implements the error interface.
func (e *SyntaxError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d", e.Line, e.Column)
}

// Unwrap returns ErrSyntax so callers can use errors.Is for programmatic detection.
func (e *SyntaxError) Unwrap() error { return ErrSyntax }

// Equal reports whether both blocks are missing, or both are found with
// the same lines.
func (b Block) Equal(other Block) bool {
	return b.Found == other.Found && slices.Equal(b.Lines, other.Lines)
}

// NewLocator creates a Locator caching up to size parsed texts.
func NewLocator(size int) (*Locator, error) {
	cache, err := lru.New[[sha256.Size]byte, *index](size)
	if err != nil {
		return nil, fmt.Errorf("creating parse cache: %w", err)
	}
	return &Locator{cache: cache}, nil
}

// Locate returns a Block for every requested name. Names absent from the
// text map to ElementNotFound. A *SyntaxError is returned only when the
// text does not parse and at least one name other than WholeFile was
// requested.
func (l *Locator) Locate(ctx context.Context, text string, names []string) (map[string]Block, error) {
	out := make(map[string]Block, len(names))

	if !slices.ContainsFunc(names, func(n string) bool { return n != WholeFile }) {
		for _, n := range names {
			out[n] = Block{Lines: SplitLines(text), Found: true}
		}
		return out, nil
	}

	idx, err := l.load(ctx, text)
	if err != nil {
		return nil, err
	}
	if idx.err != nil {
		return nil, idx.err
	}

	for _, n := range names {
		if n == WholeFile {
			out[n] = Block{Lines: slices.Clone(idx.lines), Found: true}
			continue
		}
		s, ok := idx.spans[n]
		if !ok {
			out[n] = ElementNotFound
			continue
		}
		out[n] = Block{Lines: slices.Clone(idx.lines[s.start : s.end+1]), Found: true}
	}
	return out, nil
}

// SplitLines splits text into lines without their terminators. A final
// terminator does not produce a trailing empty line.
func SplitLines(text string) []string {
	if text == "" {
		return []string{}
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func (l *Locator) load(ctx context.Context, text string) (*index, error) {
	key := sha256.Sum256([]byte(text))
	if idx, ok := l.cache.Get(key); ok {
		return idx, nil
	}

	idx, err := buildIndex(ctx, text)
	if err != nil {
		return nil, err
	}
	l.cache.Add(key, idx)
	return idx, nil
}

// buildIndex parses text. A syntax error is stored in the index rather
// than returned, so it is cached like a successful parse.
func buildIndex(ctx context.Context, text string) (*index, error) {
	src := []byte(text)

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())

	tree, err := parser.ParseCtx(ctx, nil, src)
	if err != nil {
		return nil, fmt.Errorf("parsing source: %w", err)
	}
	defer tree.Close()

	idx := &index{lines: SplitLines(text), spans: make(map[string]span)}
	root := tree.RootNode()
	if root.HasError() {
		idx.err = firstError(root)
		return idx, nil
	}

	b := indexBuilder{src: src, idx: idx}
	b.walk(root, "", false)
	return idx, nil
}

type indexBuilder struct {
	src []byte
	idx *index
}

func (b *indexBuilder) walk(n *sitter.Node, prefix string, inFunction bool) {
	for i := range int(n.NamedChildCount()) {
		child := n.NamedChild(i)
		switch child.Type() {
		case "decorated_definition":
			if def := child.ChildByFieldName("definition"); def != nil {
				b.define(def, int(child.StartPoint().Row), prefix, inFunction)
				continue
			}
			b.walk(child, prefix, inFunction)
		case "function_definition", "class_definition":
			b.define(child, int(child.StartPoint().Row), prefix, inFunction)
		case "assignment":
			b.assign(child, prefix, inFunction)
		default:
			b.walk(child, prefix, inFunction)
		}
	}
}

// define records a definition under its dotted path; a later definition
// with the same path replaces an earlier one.
func (b *indexBuilder) define(def *sitter.Node, startRow int, prefix string, inFunction bool) {
	nameNode := def.ChildByFieldName("name")
	if nameNode == nil {
		b.walk(def, prefix, inFunction)
		return
	}

	name := dotted(prefix, nameNode.Content(b.src))
	b.record(name, startRow, def)
	b.walk(def, name, inFunction || def.Type() == "function_definition")
}

// assign records "name = value" outside function bodies. Only the first
// target of a chained assignment is an element.
func (b *indexBuilder) assign(n *sitter.Node, prefix string, inFunction bool) {
	left := n.ChildByFieldName("left")
	if inFunction || left == nil || left.Type() != "identifier" {
		return
	}
	b.record(dotted(prefix, left.Content(b.src)), int(n.StartPoint().Row), n)
}

func (b *indexBuilder) record(name string, startRow int, n *sitter.Node) {
	end := n.EndPoint()
	endRow := int(end.Row)
	if end.Column == 0 && endRow > startRow {
		endRow--
	}
	endRow = min(endRow, len(b.idx.lines)-1)
	for endRow > startRow && strings.TrimSpace(b.idx.lines[endRow]) == "" {
		endRow--
	}
	b.idx.spans[name] = span{start: startRow, end: endRow}
}

func dotted(prefix, name string) string {
	if prefix == "" {
		return name
	}
	return prefix + "." + name
}

// firstError returns the position of the first ERROR or MISSING node.
func firstError(root *sitter.Node) *SyntaxError {
	var found *sitter.Node
	var visit func(n *sitter.Node)
	visit = func(n *sitter.Node) {
		if found != nil {
			return
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			found = n
			return
		}
		for i := range int(n.ChildCount()) {
			if c := n.Child(i); c.HasError() || c.IsMissing() {
				visit(c)
			}
		}
	}
	visit(root)

	if found == nil {
		found = root
	}
	p := found.StartPoint()
	return &SyntaxError{Line: int(p.Row) + 1, Column: int(p.Column) + 1}
}
