package cli

const usage = `Usage:
  islet transform <file.mdx> [--root PATH] [--config PATH] [--verbose]
  islet scan [--root PATH] [--config PATH] [--format table|json] [--include GLOB] [--exclude GLOB] [--verbose]

Commands:
  transform                  Compile one document and print the code, with the
                             hydration marker when it imports an island
  scan                       Report which documents under app/ need hydration

Options:
  --root PATH                Project root (transform: nearest package.json or
                             islet config above the document; scan: .)
  --config PATH              Config file (default: islet.yml, islet.yaml,
                             islet.toml or islet.json in the root)
  --format table|json        Output format for scan (default: table)
  --include GLOB             Only scan documents matching GLOB (repeatable)
  --exclude GLOB             Skip documents matching GLOB (repeatable)
  -v, --verbose              Log debug output to stderr
  -h, --help                 Show this help text
`

func Usage() string {
	return usage
}
