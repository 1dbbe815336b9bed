package sandbox

import (
	"fmt"
	"regexp"
	"strings"
)

type rule struct {
	re     *regexp.Regexp
	reason string
}

// forbidden lists the constructs generated code may not contain. The harness
// also strips the matching builtins and disables every reader and writer, so
// these are a first line of rejection with clearer messages. I/O attributes
// are matched on any reference, not only a call, so an alias is rejected too.
var forbidden = []rule{
	{regexp.MustCompile(`(?m)^\s*(import\s+\w|from\s+[\w.]+\s+import\b)`), "import statements are not allowed"},
	{regexp.MustCompile(`__\w+__`), "dunder attribute access is not allowed"},
	{regexp.MustCompile(`(?:^|[^.\w])(exec|eval|compile|open|input|breakpoint|globals|locals|vars|getattr|setattr|delattr)\s*\(`), "builtin is not available"},
	{regexp.MustCompile(`\b(os|sys|subprocess|shutil|socket|pathlib|importlib|ctypes|pickle|marshal|requests|urllib|http|ftplib|smtplib)\s*\.`), "filesystem, network and process modules are not available"},
	{regexp.MustCompile(`\.\s*(read_\w+|to_(csv|excel|parquet|pickle|sql|hdf|feather|stata|orc|clipboard|json|html|latex|xml|markdown)|write_\w+)\b`), "file input and output is not allowed"},
	{regexp.MustCompile(`\bpd\s*\.\s*(io|ExcelWriter|ExcelFile|HDFStore)\b`), "file input and output is not allowed"},
	{regexp.MustCompile(`\bpd\s*\.\s*eval\b`), "builtin is not available"},
}

// Validator statically rejects snippets before they reach an interpreter.
type Validator struct {
	MaxCodeBytes int
}

// Validate returns ErrNoCode for blank code and ErrBlocked for oversize code
// or any forbidden construct.
func (v Validator) Validate(code string) error {
	if strings.TrimSpace(code) == "" {
		return ErrNoCode
	}
	if v.MaxCodeBytes > 0 && len(code) > v.MaxCodeBytes {
		return fmt.Errorf("%w: code is %d bytes, limit is %d", ErrBlocked, len(code), v.MaxCodeBytes)
	}
	for _, r := range forbidden {
		if m := r.re.FindString(code); m != "" {
			return fmt.Errorf("%w: %s (%q)", ErrBlocked, r.reason, strings.TrimSpace(m))
		}
	}
	return nil
}
