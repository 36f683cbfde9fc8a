package cli

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"strings"

	"github.com/ben-ranford/islet/internal/app"
	"github.com/ben-ranford/islet/internal/report"
)

var (
	ErrHelpRequested  = errors.New("help requested")
	ErrMissingCommand = errors.New("missing command")
)

// patternList collects a repeatable flag.
type patternList []string

func (p *patternList) String() string {
	return strings.Join(*p, ",")
}

func (p *patternList) Set(value string) error {
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			*p = append(*p, trimmed)
		}
	}
	return nil
}

func ParseArgs(args []string) (app.Request, error) {
	req := app.DefaultRequest()
	if len(args) == 0 {
		return req, ErrMissingCommand
	}

	if isHelpArg(args[0]) {
		return req, ErrHelpRequested
	}

	switch args[0] {
	case "transform":
		return parseTransform(args[1:], req)
	case "scan":
		return parseScan(args[1:], req)
	default:
		return req, fmt.Errorf("unknown command: %s", args[0])
	}
}

type commonFlags struct {
	root    *string
	config  *string
	verbose *bool
}

func registerCommon(fs *flag.FlagSet, req app.Request) commonFlags {
	flags := commonFlags{
		root:    fs.String("root", req.Root, "project root"),
		config:  fs.String("config", req.ConfigPath, "config file path"),
		verbose: fs.Bool("verbose", req.Verbose, "debug logging"),
	}
	fs.BoolVar(flags.verbose, "v", req.Verbose, "debug logging")
	return flags
}

func (f commonFlags) apply(req *app.Request) {
	req.Root = strings.TrimSpace(*f.root)
	req.ConfigPath = strings.TrimSpace(*f.config)
	req.Verbose = *f.verbose
}

func parseTransform(args []string, req app.Request) (app.Request, error) {
	args = normalizeArgs(args)

	fs := flag.NewFlagSet("transform", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	common := registerCommon(fs, req)

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return req, ErrHelpRequested
		}
		return req, err
	}

	remaining := fs.Args()
	switch {
	case len(remaining) == 0:
		return req, fmt.Errorf("transform requires a document path")
	case len(remaining) > 1:
		return req, fmt.Errorf("too many arguments for transform")
	}

	req.Mode = app.ModeTransform
	common.apply(&req)
	req.Transform.File = remaining[0]
	return req, nil
}

func parseScan(args []string, req app.Request) (app.Request, error) {
	args = normalizeArgs(args)

	fs := flag.NewFlagSet("scan", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	common := registerCommon(fs, req)
	formatFlag := fs.String("format", string(req.Scan.Format), "output format")
	var include, exclude patternList
	fs.Var(&include, "include", "include glob")
	fs.Var(&exclude, "exclude", "exclude glob")

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return req, ErrHelpRequested
		}
		return req, err
	}
	if len(fs.Args()) > 0 {
		return req, fmt.Errorf("too many arguments for scan")
	}

	format, err := report.ParseFormat(*formatFlag)
	if err != nil {
		return req, err
	}

	req.Mode = app.ModeScan
	common.apply(&req)
	req.Scan.Format = format
	req.Scan.IncludePatterns = include
	req.Scan.ExcludePatterns = exclude
	return req, nil
}

func isHelpArg(arg string) bool {
	switch arg {
	case "-h", "--help", "help":
		return true
	default:
		return false
	}
}

// normalizeArgs moves flags ahead of positionals so flags may follow the
// document path.
func normalizeArgs(args []string) []string {
	if len(args) == 0 {
		return args
	}

	flags := make([]string, 0, len(args))
	positionals := make([]string, 0, 1)

	for i := 0; i < len(args); i++ {
		arg := args[i]
		if arg == "--" {
			positionals = append(positionals, args[i+1:]...)
			break
		}
		if strings.HasPrefix(arg, "-") {
			flags = append(flags, arg)
			if flagNeedsValue(arg) && i+1 < len(args) {
				flags = append(flags, args[i+1])
				i++
			}
			continue
		}
		positionals = append(positionals, arg)
	}

	if len(positionals) == 0 {
		return flags
	}
	return append(append(flags, "--"), positionals...)
}

func flagNeedsValue(arg string) bool {
	if strings.Contains(arg, "=") {
		return false
	}
	switch arg {
	case "--root", "-root", "--config", "-config", "--format", "-format", "--include", "-include", "--exclude", "-exclude":
		return true
	default:
		return false
	}
}
