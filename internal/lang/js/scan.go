package js

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/javascript"
	tsxlang "github.com/smacker/go-tree-sitter/typescript/tsx"
	tslang "github.com/smacker/go-tree-sitter/typescript/typescript"
)

type Dialect string

const (
	DialectJS  Dialect = "js"
	DialectTS  Dialect = "ts"
	DialectTSX Dialect = "tsx"
)

var (
	ErrParse              = errors.New("source has syntax errors")
	ErrUnsupportedDialect = errors.New("unsupported dialect")
)

// DialectForPath picks a grammar from a file extension. Unknown extensions
// use TSX, which accepts plain JS as well as JSX and type annotations.
func DialectForPath(path string) Dialect {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".cjs", ".mjs", ".jsx":
		return DialectJS
	case ".ts", ".mts", ".cts":
		return DialectTS
	default:
		return DialectTSX
	}
}

// Extractor returns the module specifiers a piece of code references.
type Extractor interface {
	Extract(ctx context.Context, code []byte, dialect Dialect) ([]string, error)
}

// ExtractorFunc adapts a plain function to Extractor.
type ExtractorFunc func(ctx context.Context, code []byte, dialect Dialect) ([]string, error)

func (f ExtractorFunc) Extract(ctx context.Context, code []byte, dialect Dialect) ([]string, error) {
	return f(ctx, code, dialect)
}

type SpecifierExtractor struct {
	parser *sourceParser
}

func NewExtractor() *SpecifierExtractor {
	return &SpecifierExtractor{parser: newSourceParser()}
}

func (e *SpecifierExtractor) Extract(ctx context.Context, code []byte, dialect Dialect) ([]string, error) {
	return e.parser.specifiers(ctx, code, dialect)
}

// ExtractSpecifiers lists every statically imported or required module in
// source order. Duplicates are kept.
func ExtractSpecifiers(ctx context.Context, code []byte, dialect Dialect) ([]string, error) {
	return newSourceParser().specifiers(ctx, code, dialect)
}

// Validate parses code and reports ErrParse when the tree contains errors.
func Validate(ctx context.Context, code []byte, dialect Dialect) error {
	tree, err := newSourceParser().Parse(ctx, dialect, code)
	if err != nil {
		return err
	}
	if tree.RootNode().HasError() {
		return ErrParse
	}
	return nil
}

type sourceParser struct {
	js  *sitter.Language
	ts  *sitter.Language
	tsx *sitter.Language
}

func newSourceParser() *sourceParser {
	return &sourceParser{
		js:  javascript.GetLanguage(),
		ts:  tslang.GetLanguage(),
		tsx: tsxlang.GetLanguage(),
	}
}

func (p *sourceParser) Parse(ctx context.Context, dialect Dialect, content []byte) (*sitter.Tree, error) {
	lang, err := p.language(dialect)
	if err != nil {
		return nil, err
	}

	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, err
	}
	if tree == nil {
		return nil, fmt.Errorf("tree-sitter returned nil tree for %s source", dialect)
	}
	return tree, nil
}

func (p *sourceParser) language(dialect Dialect) (*sitter.Language, error) {
	switch dialect {
	case DialectJS:
		return p.js, nil
	case DialectTS:
		return p.ts, nil
	case DialectTSX, "":
		return p.tsx, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedDialect, dialect)
	}
}

func (p *sourceParser) specifiers(ctx context.Context, code []byte, dialect Dialect) ([]string, error) {
	tree, err := p.Parse(ctx, dialect, code)
	if err != nil {
		return nil, err
	}
	root := tree.RootNode()
	if root.HasError() {
		return nil, ErrParse
	}
	return collectSpecifiers(root, code), nil
}

func collectSpecifiers(root *sitter.Node, content []byte) []string {
	specifiers := make([]string, 0)
	walkNode(root, func(node *sitter.Node) {
		switch node.Type() {
		case "import_statement", "export_statement":
			if module, ok := extractStringLiteral(node.ChildByFieldName("source"), content); ok {
				specifiers = append(specifiers, module)
			}
		case "call_expression":
			if module, ok := parseLoaderCall(node, content); ok {
				specifiers = append(specifiers, module)
			}
		}
	})
	return specifiers
}

// parseLoaderCall handles require("x") and import("x").
func parseLoaderCall(node *sitter.Node, content []byte) (string, bool) {
	functionNode := node.ChildByFieldName("function")
	if functionNode == nil {
		return "", false
	}
	switch functionNode.Type() {
	case "import":
	case "identifier":
		if nodeText(functionNode, content) != "require" {
			return "", false
		}
	default:
		return "", false
	}

	argumentsNode := node.ChildByFieldName("arguments")
	if argumentsNode == nil || argumentsNode.NamedChildCount() == 0 {
		return "", false
	}
	first := argumentsNode.NamedChild(0)
	if first.Type() != "string" {
		return "", false
	}
	return extractStringLiteral(first, content)
}

func walkNode(node *sitter.Node, visit func(*sitter.Node)) {
	for i := 0; i < int(node.NamedChildCount()); i++ {
		child := node.NamedChild(i)
		visit(child)
		walkNode(child, visit)
	}
}

func extractStringLiteral(node *sitter.Node, content []byte) (string, bool) {
	if node == nil {
		return "", false
	}

	text := nodeText(node, content)
	if text == "" {
		return "", false
	}

	if len(text) >= 2 {
		quote := text[0]
		if (quote == '"' || quote == '\'') && text[len(text)-1] == quote {
			return text[1 : len(text)-1], true
		}
	}

	text = strings.Trim(text, "\"'`")
	if text == "" {
		return "", false
	}
	return text, true
}

func nodeText(node *sitter.Node, content []byte) string {
	if node == nil {
		return ""
	}
	return string(content[node.StartByte():node.EndByte()])
}
