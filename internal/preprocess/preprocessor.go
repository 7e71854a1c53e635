package preprocess

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/cosmindanescu/logsieve/internal/config"
)

// Config holds the preprocessing rules applied to raw lines before parsing.
type Config struct {
	// DelimiterPatterns are substituted first, in order
	DelimiterPatterns []config.Replacement
	// CustomReplaceList is substituted second, in order
	CustomReplaceList []config.Replacement
	// ExtractPatterns maps a caller-supplied name to a pattern whose first
	// capture group (or whole match) is collected from each line
	ExtractPatterns map[string]string
}

// Preprocessor cleans raw log lines: delimiter substitutions, custom
// replacements, and optional named term extraction. Construction compiles
// every pattern once so per-line work is substitution only.
type Preprocessor struct {
	delimiters   []rule
	replacements []rule
	extract      map[string]*regexp.Regexp
	extractNames []string

	// Fast path for delimiter sets made of single literal bytes
	fastDelims bool
	byteRules  []byteRule
}

type rule struct {
	pattern     *regexp.Regexp
	replacement string
}

type byteRule struct {
	b           byte
	replacement string
}

// New compiles the configured rules into a preprocessor.
func New(cfg Config) (*Preprocessor, error) {
	p := &Preprocessor{
		extract: make(map[string]*regexp.Regexp),
	}

	p.fastDelims = true
	for _, r := range cfg.DelimiterPatterns {
		if b, ok := literalByte(r.Pattern); ok && p.fastDelims {
			p.byteRules = append(p.byteRules, byteRule{b: b, replacement: r.Replacement})
		} else {
			p.fastDelims = false
		}

		compiled, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid delimiter pattern %q: %w", r.Pattern, err)
		}
		p.delimiters = append(p.delimiters, rule{pattern: compiled, replacement: r.Replacement})
	}

	for _, r := range cfg.CustomReplaceList {
		compiled, err := regexp.Compile(r.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid replacement pattern %q: %w", r.Pattern, err)
		}
		p.replacements = append(p.replacements, rule{pattern: compiled, replacement: r.Replacement})
	}

	for name, pattern := range cfg.ExtractPatterns {
		compiled, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid extraction pattern %q: %w", pattern, err)
		}
		p.extract[name] = compiled
		p.extractNames = append(p.extractNames, name)
	}

	return p, nil
}

// FromIngestConfig builds a preprocessor from the ingest configuration.
func FromIngestConfig(cfg config.IngestConfig) (*Preprocessor, error) {
	return New(Config{
		DelimiterPatterns: cfg.DelimiterPatterns,
		CustomReplaceList: cfg.CustomReplaceList,
	})
}

// CleanLine cleans one line and returns any extracted terms grouped by the
// configured name. Terms are taken from the raw line, before substitution.
func (p *Preprocessor) CleanLine(line string) (string, map[string][]string) {
	terms := p.extractTerms(line)

	cleaned := line
	if p.fastDelims {
		cleaned = p.replaceBytes(cleaned)
	} else {
		for _, r := range p.delimiters {
			cleaned = r.pattern.ReplaceAllString(cleaned, r.replacement)
		}
	}

	for _, r := range p.replacements {
		cleaned = r.pattern.ReplaceAllString(cleaned, r.replacement)
	}

	return cleaned, terms
}

// CleanBatch cleans a batch of lines. Extracted terms are returned per line,
// grouped by name, in line order.
func (p *Preprocessor) CleanBatch(lines []string) ([]string, map[string][][]string) {
	cleaned := make([]string, len(lines))
	batchTerms := make(map[string][][]string, len(p.extract))
	for _, name := range p.extractNames {
		batchTerms[name] = make([][]string, len(lines))
	}

	for i, line := range lines {
		lineClean, terms := p.CleanLine(line)
		cleaned[i] = lineClean
		for name, values := range terms {
			batchTerms[name][i] = values
		}
	}

	return cleaned, batchTerms
}

func (p *Preprocessor) extractTerms(line string) map[string][]string {
	if len(p.extract) == 0 {
		return nil
	}

	terms := make(map[string][]string, len(p.extract))
	for name, pattern := range p.extract {
		var values []string
		for _, match := range pattern.FindAllStringSubmatch(line, -1) {
			if len(match) > 1 {
				values = append(values, match[1])
			} else {
				values = append(values, match[0])
			}
		}
		terms[name] = values
	}
	return terms
}

// replaceBytes is the single-byte delimiter fast path. It produces the same
// output as running the equivalent regex rules in order.
func (p *Preprocessor) replaceBytes(line string) string {
	for _, r := range p.byteRules {
		if strings.IndexByte(line, r.b) < 0 {
			continue
		}
		line = strings.ReplaceAll(line, string(r.b), r.replacement)
	}
	return line
}

// literalByte reports whether the pattern matches exactly one literal byte.
func literalByte(pattern string) (byte, bool) {
	if len(pattern) == 1 && !strings.ContainsAny(pattern, `.\+*?()|[]{}^$`) {
		return pattern[0], true
	}
	// Common escaped single characters
	if len(pattern) == 2 && pattern[0] == '\\' {
		switch pattern[1] {
		case 't':
			return '\t', true
		case '.', '\\', '|', '(', ')', '[', ']', '{', '}', '^', '$', '+', '*', '?':
			return pattern[1], true
		}
	}
	return 0, false
}
