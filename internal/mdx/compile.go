package mdx

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/renderer/html"

	"github.com/ben-ranford/islet/internal/lang/js"
)

const defaultJSXImportSource = "react"

type Options struct {
	JSXImportSource string
	RemarkPlugins   []Plugin
}

type Output struct {
	Value string
}

// Compiler turns markup into module code. Options are fixed at construction
// and results are memoized by markup content.
type Compiler struct {
	opts     Options
	cache    *CompileCache
	markdown goldmark.Markdown
	gfm      goldmark.Markdown
}

func NewCompiler(opts Options) *Compiler {
	frozen := Options{
		JSXImportSource: strings.TrimSpace(opts.JSXImportSource),
		RemarkPlugins:   append([]Plugin(nil), opts.RemarkPlugins...),
	}
	if frozen.JSXImportSource == "" {
		frozen.JSXImportSource = defaultJSXImportSource
	}
	return &Compiler{
		opts:  frozen,
		cache: NewCompileCache(),
		markdown: goldmark.New(
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
		gfm: goldmark.New(
			goldmark.WithExtensions(extension.GFM),
			goldmark.WithRendererOptions(html.WithUnsafe()),
		),
	}
}

func (c *Compiler) Options() Options {
	return Options{
		JSXImportSource: c.opts.JSXImportSource,
		RemarkPlugins:   append([]Plugin(nil), c.opts.RemarkPlugins...),
	}
}

func (c *Compiler) CacheStats() CacheStats {
	return c.cache.Stats()
}

// Reset drops memoized compile results.
func (c *Compiler) Reset() {
	c.cache.Reset()
}

func (c *Compiler) Compile(ctx context.Context, markup []byte) (Output, error) {
	if err := ctx.Err(); err != nil {
		return Output{}, err
	}
	if cached, ok := c.cache.Get(markup); ok {
		return Output{Value: cached}, nil
	}

	code, err := c.compile(ctx, markup)
	if err != nil {
		return Output{}, err
	}
	c.cache.Put(markup, code)
	return Output{Value: code}, nil
}

func (c *Compiler) compile(ctx context.Context, markup []byte) (string, error) {
	doc := newDocument(markup)
	for _, plugin := range c.opts.RemarkPlugins {
		if err := plugin.Transform(doc); err != nil {
			if _, ok := err.(*CompileError); ok {
				return "", err
			}
			return "", &CompileError{Reason: fmt.Sprintf("plugin %s", plugin.Name()), Err: err}
		}
	}

	blocks := doc.splitBlocks()
	esm := make([]string, 0)
	content := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch b.kind {
		case blockESM:
			if err := js.Validate(ctx, []byte(b.text), js.DialectTSX); err != nil {
				return "", &CompileError{Line: b.line, Reason: "could not parse import/export statement", Err: err}
			}
			esm = append(esm, b.text)
		case blockJSX:
			element, err := c.element(b, doc.GFM)
			if err != nil {
				return "", err
			}
			if err := js.Validate(ctx, []byte("<>\n"+element+"\n</>;"), js.DialectTSX); err != nil {
				return "", &CompileError{Line: b.line, Reason: "could not parse component", Err: err}
			}
			content = append(content, element)
		default:
			child, err := c.markdownChild(b, doc.GFM)
			if err != nil {
				return "", err
			}
			if child != "" {
				content = append(content, child)
			}
		}
	}

	return c.emit(esm, doc.Exports, content), nil
}

// element returns a component block as JSX, rendering any markdown it wraps.
func (c *Compiler) element(b block, gfm bool) (string, error) {
	if len(b.parts) == 0 {
		return b.text, nil
	}
	children := make([]string, 0, len(b.parts))
	for _, part := range b.parts {
		if part.kind == blockJSX {
			children = append(children, part.text)
			continue
		}
		child, err := c.markdownChild(part, gfm)
		if err != nil {
			return "", err
		}
		if child != "" {
			children = append(children, child)
		}
	}
	return strings.Join(children, "\n"), nil
}

// markdownChild renders a markdown block as a JSX child holding its HTML.
// Blocks that render to nothing yield "".
func (c *Compiler) markdownChild(b block, gfm bool) (string, error) {
	rendered, err := c.renderMarkdown(b.text, gfm)
	if err != nil {
		return "", &CompileError{Line: b.line, Reason: "could not render markdown", Err: err}
	}
	if rendered == "" {
		return "", nil
	}
	literal, err := jsLiteral(rendered)
	if err != nil {
		return "", &CompileError{Line: b.line, Reason: "could not encode markdown", Err: err}
	}
	return "{_jsx(\"div\", {dangerouslySetInnerHTML: {__html: " + literal + "}})}", nil
}

func (c *Compiler) renderMarkdown(text string, gfm bool) (string, error) {
	renderer := c.markdown
	if gfm {
		renderer = c.gfm
	}
	var buf bytes.Buffer
	if err := renderer.Convert([]byte(text), &buf); err != nil {
		return "", err
	}
	return strings.TrimSpace(buf.String()), nil
}

func (c *Compiler) emit(esm []string, exports []string, content []string) string {
	var out strings.Builder
	out.WriteString("/*@jsxRuntime automatic*/\n")
	fmt.Fprintf(&out, "/*@jsxImportSource %s*/\n", c.opts.JSXImportSource)
	fmt.Fprintf(&out, "import {jsx as _jsx} from %q;\n", c.opts.JSXImportSource+"/jsx-runtime")
	for _, block := range esm {
		out.WriteString(block)
		out.WriteString("\n")
	}
	for _, export := range exports {
		out.WriteString(export)
		out.WriteString("\n")
	}
	out.WriteString("function _createMdxContent(props) {\n")
	out.WriteString("  return <>\n")
	for _, child := range content {
		for _, line := range strings.Split(child, "\n") {
			out.WriteString("    ")
			out.WriteString(line)
			out.WriteString("\n")
		}
	}
	out.WriteString("  </>;\n")
	out.WriteString("}\n")
	out.WriteString("export default function MDXContent(props = {}) {\n")
	out.WriteString("  return _createMdxContent(props);\n")
	out.WriteString("}\n")
	return out.String()
}
