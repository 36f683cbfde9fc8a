package mdx

import (
	"errors"
	"fmt"
	"strings"
)

var ErrCompile = errors.New("markup compile failed")

// CompileError carries the markup line a failure was detected on.
type CompileError struct {
	Line   int
	Reason string
	Err    error
}

func (e *CompileError) Error() string {
	msg := e.Reason
	if e.Line > 0 {
		msg = fmt.Sprintf("line %d: %s", e.Line, msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return ErrCompile.Error() + ": " + msg
}

func (e *CompileError) Unwrap() error {
	return e.Err
}

func (e *CompileError) Is(target error) bool {
	return target == ErrCompile
}

// Document is the markup being compiled. Plugins mutate it before the
// ESM and content blocks are split out.
type Document struct {
	Source      string
	Frontmatter *FrontmatterData
	Exports     []string
	GFM         bool

	// lines removed from the top of Source, so errors report original lines
	lineOffset int
}

// FrontmatterData is a decoded frontmatter block.
type FrontmatterData struct {
	Format string
	Raw    string
	Data   map[string]any
}

func newDocument(markup []byte) *Document {
	source := strings.ReplaceAll(string(markup), "\r\n", "\n")
	return &Document{Source: strings.TrimPrefix(source, "\ufeff")}
}

// StripLeading removes the first n lines of Source.
func (d *Document) StripLeading(n int) {
	lines := strings.SplitAfter(d.Source, "\n")
	if n > len(lines) {
		n = len(lines)
	}
	d.Source = strings.Join(lines[n:], "")
	d.lineOffset += n
}

func (d *Document) AddExport(code string) {
	d.Exports = append(d.Exports, strings.TrimSpace(code))
}

type blockKind int

const (
	blockMarkdown blockKind = iota
	blockESM
	blockJSX
)

type block struct {
	kind blockKind
	line int
	text string
	// blocks an element spans when it is only closed after blank lines
	parts []block
}

// splitBlocks groups Source into blank-line separated blocks and tags the
// top-level import/export and component blocks. Fenced code never counts.
func (d *Document) splitBlocks() []block {
	blocks := make([]block, 0)
	var (
		current []string
		start   int
		fence   string
	)
	flush := func() {
		if len(current) == 0 {
			return
		}
		text := strings.Join(current, "\n")
		blocks = append(blocks, block{kind: classifyBlock(current[0]), line: start, text: text})
		current = nil
	}

	for idx, line := range strings.Split(d.Source, "\n") {
		lineNo := d.lineOffset + idx + 1
		if fence != "" {
			current = append(current, line)
			if strings.HasPrefix(strings.TrimSpace(line), fence) {
				fence = ""
			}
			continue
		}
		if marker, ok := fenceMarker(line); ok {
			if len(current) == 0 {
				start = lineNo
			}
			current = append(current, line)
			fence = marker
			continue
		}
		if strings.TrimSpace(line) == "" {
			flush()
			continue
		}
		if len(current) == 0 {
			start = lineNo
		}
		current = append(current, line)
	}
	flush()
	return mergeMarkdown(groupElements(blocks))
}

// groupElements folds the blocks between an element's opening tag and its
// closing tag into one component block, so a wrapper separated from its
// markdown children by blank lines compiles as a unit.
func groupElements(blocks []block) []block {
	grouped := make([]block, 0, len(blocks))
	for i := 0; i < len(blocks); i++ {
		b := blocks[i]
		if b.kind != blockJSX {
			grouped = append(grouped, b)
			continue
		}
		depth := tagBalance(b.text)
		if depth <= 0 {
			grouped = append(grouped, b)
			continue
		}

		parts := []block{b}
		for depth > 0 && i+1 < len(blocks) {
			i++
			part := blocks[i]
			if startsElement(part.text) {
				part.kind = blockJSX
				depth += tagBalance(part.text)
			} else {
				part.kind = blockMarkdown
			}
			parts = append(parts, part)
		}
		parts = mergeMarkdown(parts)
		texts := make([]string, 0, len(parts))
		for _, part := range parts {
			texts = append(texts, part.text)
		}
		grouped = append(grouped, block{kind: blockJSX, line: b.line, text: strings.Join(texts, "\n\n"), parts: parts})
	}
	return grouped
}

func startsElement(text string) bool {
	return len(text) > 1 && text[0] == '<' && (isLetter(text[1]) || text[1] == '/' || text[1] == '>')
}

// tagBalance returns how many elements text opens without closing. Tags
// inside {expressions} and quoted attribute values are ignored.
func tagBalance(text string) int {
	depth := 0
	for i := 0; i < len(text); i++ {
		switch text[i] {
		case '{':
			i = skipExpression(text, i)
		case '<':
			if i+1 >= len(text) {
				continue
			}
			next := text[i+1]
			switch {
			case next == '/':
				depth--
				i = skipTag(text, i)
			case next == '>' || isLetter(next):
				end := skipTag(text, i)
				if end >= len(text) || text[end-1] != '/' {
					depth++
				}
				i = end
			}
		}
	}
	return depth
}

// skipTag returns the index of the '>' closing the tag opened at start, or
// len(text) when the tag never closes.
func skipTag(text string, start int) int {
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '>':
			return i
		case '"', '\'':
			i = skipQuoted(text, i)
		case '{':
			i = skipExpression(text, i)
		}
	}
	return len(text)
}

// skipExpression returns the index of the '}' matching the '{' at start.
func skipExpression(text string, start int) int {
	depth := 0
	for i := start; i < len(text); i++ {
		switch text[i] {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		case '"', '\'', '`':
			i = skipQuoted(text, i)
		}
	}
	return len(text)
}

func skipQuoted(text string, start int) int {
	quote := text[start]
	for i := start + 1; i < len(text); i++ {
		switch text[i] {
		case '\\':
			i++
		case quote:
			return i
		}
	}
	return len(text)
}

func classifyBlock(first string) blockKind {
	switch {
	case strings.HasPrefix(first, "import ") || strings.HasPrefix(first, "import{") || strings.HasPrefix(first, "import\""):
		return blockESM
	case strings.HasPrefix(first, "export "):
		return blockESM
	case len(first) > 1 && first[0] == '<' && (isUpper(first[1]) || first[1] == '>'):
		return blockJSX
	default:
		return blockMarkdown
	}
}

func isUpper(b byte) bool {
	return b >= 'A' && b <= 'Z'
}

func isLetter(b byte) bool {
	return isUpper(b) || (b >= 'a' && b <= 'z')
}

func fenceMarker(line string) (string, bool) {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return "", false
	}
	for _, marker := range []string{"```", "~~~"} {
		if strings.HasPrefix(trimmed, marker) {
			return marker, true
		}
	}
	return "", false
}

// mergeMarkdown joins adjacent markdown blocks so lists and paragraphs
// render as one segment.
func mergeMarkdown(blocks []block) []block {
	merged := make([]block, 0, len(blocks))
	for _, b := range blocks {
		if b.kind == blockMarkdown && len(merged) > 0 && merged[len(merged)-1].kind == blockMarkdown {
			merged[len(merged)-1].text += "\n\n" + b.text
			continue
		}
		merged = append(merged, b)
	}
	return merged
}
