package mdx

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Plugin pre-processes a document before code generation.
type Plugin interface {
	Name() string
	Transform(doc *Document) error
}

const (
	PluginFrontmatter    = "frontmatter"
	PluginMDXFrontmatter = "mdx-frontmatter"
	PluginGFM            = "gfm"
)

type frontmatterPlugin struct{}

// Frontmatter strips a leading YAML (---) or TOML (+++) block and keeps its
// decoded data on the document.
func Frontmatter() Plugin {
	return frontmatterPlugin{}
}

func (frontmatterPlugin) Name() string {
	return PluginFrontmatter
}

func (frontmatterPlugin) Transform(doc *Document) error {
	lines := strings.Split(doc.Source, "\n")
	if len(lines) == 0 {
		return nil
	}
	fence := strings.TrimRight(lines[0], " \t")
	var format string
	switch fence {
	case "---":
		format = "yaml"
	case "+++":
		format = "toml"
	default:
		return nil
	}

	closing := -1
	for i := 1; i < len(lines); i++ {
		if strings.TrimRight(lines[i], " \t") == fence {
			closing = i
			break
		}
	}
	if closing < 0 {
		return &CompileError{Line: doc.lineOffset + 1, Reason: "unterminated " + format + " frontmatter"}
	}

	raw := strings.Join(lines[1:closing], "\n")
	data, err := decodeFrontmatter(format, raw)
	if err != nil {
		return &CompileError{Line: doc.lineOffset + 2, Reason: "invalid " + format + " frontmatter", Err: err}
	}
	doc.Frontmatter = &FrontmatterData{Format: format, Raw: raw, Data: data}
	doc.StripLeading(closing + 1)
	return nil
}

func decodeFrontmatter(format string, raw string) (map[string]any, error) {
	data := make(map[string]any)
	if strings.TrimSpace(raw) == "" {
		return data, nil
	}
	switch format {
	case "toml":
		if err := toml.Unmarshal([]byte(raw), &data); err != nil {
			return nil, err
		}
	default:
		if err := yaml.Unmarshal([]byte(raw), &data); err != nil {
			return nil, err
		}
		if data == nil {
			data = make(map[string]any)
		}
	}
	return stringKeys(data).(map[string]any), nil
}

// stringKeys rewrites nested maps so every key is a string. yaml.v3 decodes
// maps with non-string keys as map[any]any, which JSON cannot encode.
func stringKeys(value any) any {
	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[key] = stringKeys(item)
		}
		return out
	case map[any]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = stringKeys(item)
		}
		return out
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = stringKeys(item)
		}
		return out
	default:
		return value
	}
}

type mdxFrontmatterPlugin struct{}

// MDXFrontmatter exports decoded frontmatter as `frontmatter`. It needs the
// frontmatter plugin to run first.
func MDXFrontmatter() Plugin {
	return mdxFrontmatterPlugin{}
}

func (mdxFrontmatterPlugin) Name() string {
	return PluginMDXFrontmatter
}

func (mdxFrontmatterPlugin) Transform(doc *Document) error {
	if doc.Frontmatter == nil {
		return nil
	}
	literal, err := jsLiteral(doc.Frontmatter.Data)
	if err != nil {
		return &CompileError{Reason: "frontmatter is not serializable", Err: err}
	}
	doc.AddExport("export const frontmatter = " + literal + ";")
	return nil
}

type gfmPlugin struct{}

func GFM() Plugin {
	return gfmPlugin{}
}

func (gfmPlugin) Name() string {
	return PluginGFM
}

func (gfmPlugin) Transform(doc *Document) error {
	doc.GFM = true
	return nil
}

// jsLiteral renders v as a JSON literal, which is valid JavaScript since
// encoding/json escapes U+2028 and U+2029.
func jsLiteral(v any) (string, error) {
	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	if err := encoder.Encode(v); err != nil {
		return "", fmt.Errorf("encode literal: %w", err)
	}
	return strings.TrimSpace(buf.String()), nil
}
