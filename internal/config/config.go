package config

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"

	"github.com/ben-ranford/islet/internal/mdx"
	"github.com/ben-ranford/islet/internal/safeio"
)

const (
	readConfigFileErrFmt = "read config file %s: %w"
	parseConfigErrFmt    = "parse config file %s: %w"

	DefaultJSXImportSource = "hono/jsx"
)

var ErrInvalid = errors.New("invalid config")

//go:embed schema.json
var schema string

var candidateNames = []string{"islet.yml", "islet.yaml", "islet.toml", "islet.json"}

type Config struct {
	JSXImportSource string
	RemarkPlugins   []string
	// Aliases maps a specifier prefix to a root-absolute prefix.
	Aliases map[string]string
	// Path is the file the values came from; empty when only defaults apply.
	Path string
}

func Defaults() Config {
	return Config{
		JSXImportSource: DefaultJSXImportSource,
		RemarkPlugins:   []string{mdx.PluginFrontmatter, mdx.PluginMDXFrontmatter},
		Aliases:         map[string]string{"@/": "/app/"},
	}
}

// CompilerOptions turns the configured plugin names into compiler options.
func (c Config) CompilerOptions(registry *mdx.Registry) (mdx.Options, error) {
	if registry == nil {
		registry = mdx.DefaultRegistry()
	}
	plugins, err := registry.Resolve(c.RemarkPlugins)
	if err != nil {
		return mdx.Options{}, err
	}
	return mdx.Options{JSXImportSource: c.JSXImportSource, RemarkPlugins: plugins}, nil
}

type rawConfig struct {
	JSXImportSource *string           `yaml:"jsx_import_source" json:"jsx_import_source" toml:"jsx_import_source"`
	RemarkPlugins   []string          `yaml:"remark_plugins" json:"remark_plugins" toml:"remark_plugins"`
	Aliases         map[string]string `yaml:"aliases" json:"aliases" toml:"aliases"`
}

func (r rawConfig) apply(base Config) Config {
	if r.JSXImportSource != nil {
		base.JSXImportSource = strings.TrimSpace(*r.JSXImportSource)
	}
	if r.RemarkPlugins != nil {
		base.RemarkPlugins = append([]string(nil), r.RemarkPlugins...)
	}
	if r.Aliases != nil {
		base.Aliases = make(map[string]string, len(r.Aliases))
		for prefix, target := range r.Aliases {
			base.Aliases[prefix] = target
		}
	}
	return base
}

// Load reads the project config from explicitPath, or the first islet.*
// file found in root. Without either it returns Defaults.
func Load(root, explicitPath string) (Config, error) {
	rootAbs, err := filepath.Abs(root)
	if err != nil {
		return Config{}, fmt.Errorf("resolve root path: %w", err)
	}
	explicitPath = strings.TrimSpace(explicitPath)
	path, found, err := resolveConfigPath(rootAbs, explicitPath)
	if err != nil {
		return Config{}, err
	}
	if !found {
		return Defaults(), nil
	}

	data, err := readConfigFile(rootAbs, path)
	if err != nil {
		return Config{}, fmt.Errorf(readConfigFileErrFmt, path, err)
	}
	raw, err := parseConfig(path, data)
	if err != nil {
		return Config{}, fmt.Errorf(parseConfigErrFmt, path, err)
	}
	cfg := raw.apply(Defaults())
	cfg.Path = path
	if _, err := cfg.CompilerOptions(nil); err != nil {
		return Config{}, fmt.Errorf(parseConfigErrFmt, path, err)
	}
	return cfg, nil
}

func resolveConfigPath(root, explicitPath string) (string, bool, error) {
	if explicitPath != "" {
		candidate := explicitPath
		if !filepath.IsAbs(candidate) {
			candidate = filepath.Join(root, candidate)
		}
		candidate = filepath.Clean(candidate)
		if _, err := os.Stat(candidate); err != nil {
			if os.IsNotExist(err) {
				return "", false, fmt.Errorf("config file not found: %s", candidate)
			}
			return "", false, fmt.Errorf(readConfigFileErrFmt, candidate, err)
		}
		return candidate, true, nil
	}

	for _, name := range candidateNames {
		candidate := filepath.Join(root, name)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, true, nil
		} else if !os.IsNotExist(err) {
			return "", false, fmt.Errorf(readConfigFileErrFmt, candidate, err)
		}
	}
	return "", false, nil
}

func readConfigFile(root, path string) ([]byte, error) {
	if isPathUnderRoot(root, path) {
		return safeio.ReadFileUnder(root, path)
	}
	return safeio.ReadFile(path)
}

// parseConfig checks data against the schema, then decodes it strictly.
func parseConfig(path string, data []byte) (rawConfig, error) {
	ext := strings.ToLower(filepath.Ext(path))
	doc, err := decodeDocument(ext, data)
	if err != nil {
		return rawConfig{}, err
	}
	if err := validate(doc); err != nil {
		return rawConfig{}, err
	}

	var cfg rawConfig
	switch ext {
	case ".json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return rawConfig{}, fmt.Errorf("invalid JSON config: %w", err)
		}
	case ".toml":
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&cfg); err != nil {
			return rawConfig{}, fmt.Errorf("invalid TOML config: %w", err)
		}
	default:
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return rawConfig{}, fmt.Errorf("invalid YAML config: %w", err)
		}
	}
	return cfg, nil
}

// decodeDocument reads data into a generic document for schema validation.
func decodeDocument(ext string, data []byte) (map[string]any, error) {
	doc := map[string]any{}
	switch ext {
	case ".json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		if err := decoder.Decode(&doc); err != nil {
			return nil, fmt.Errorf("invalid JSON config: %w", err)
		}
		if decoder.More() {
			return nil, fmt.Errorf("invalid JSON config: multiple JSON values")
		}
	case ".toml":
		if err := toml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid TOML config: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("invalid YAML config: %w", err)
		}
		if doc == nil {
			doc = map[string]any{}
		}
	}
	return doc, nil
}

func validate(doc map[string]any) error {
	result, err := gojsonschema.Validate(
		gojsonschema.NewStringLoader(schema),
		gojsonschema.NewGoLoader(doc),
	)
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if result.Valid() {
		return nil
	}
	messages := make([]string, 0, len(result.Errors()))
	for _, item := range result.Errors() {
		messages = append(messages, item.String())
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(messages, "; "))
}

func isPathUnderRoot(rootPath, targetPath string) bool {
	relative, err := filepath.Rel(rootPath, targetPath)
	if err != nil {
		return false
	}
	return relative != ".." && !strings.HasPrefix(relative, ".."+string(os.PathSeparator))
}
