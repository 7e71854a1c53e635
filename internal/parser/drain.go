package parser

import (
	"fmt"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/cosmindanescu/logsieve/internal/record"
)

// wildcard marks a variable position in a learned template.
const wildcard = "<*>"

// similarityThreshold is the minimum share of matching tokens required for a
// line to join an existing template group.
const similarityThreshold = 0.5

// DrainParser groups log messages by learned templates and emits the
// template id plus the per-occurrence variable values. Templates are learned
// online: lines with the same token count are compared against the group's
// templates and merged into the closest one, with diverging positions
// replaced by wildcards.
type DrainParser struct {
	// templates grouped by token count
	groups map[int][]*template
}

type template struct {
	tokens []string
}

// NewDrainParser creates a template-mining parser.
func NewDrainParser(opts Options) (*DrainParser, error) {
	return &DrainParser{
		groups: make(map[int][]*template),
	}, nil
}

// Validate reports whether the line is worth mining.
func (p *DrainParser) Validate(line string) bool {
	return strings.TrimSpace(line) != ""
}

// Parse assigns the line to a template and extracts its parameters.
func (p *DrainParser) Parse(line string) (*record.LogRecord, error) {
	tokens := strings.Fields(line)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty line")
	}

	tmpl := p.match(tokens)
	if tmpl == nil {
		tmpl = &template{tokens: seedTokens(tokens)}
		p.groups[len(tokens)] = append(p.groups[len(tokens)], tmpl)
	} else {
		tmpl.merge(tokens)
	}

	var params []string
	for i, tok := range tmpl.tokens {
		if tok == wildcard {
			params = append(params, tokens[i])
		}
	}

	text := strings.Join(tmpl.tokens, " ")
	rec := record.New()
	rec.SetField("template_id", fmt.Sprintf("%016x", xxhash.Sum64String(text)))
	rec.SetField("template", text)
	rec.SetField("parameters", strings.Join(params, ","))
	return rec, nil
}

// ParseLine is equivalent to Parse for this parser.
func (p *DrainParser) ParseLine(line string) (*record.LogRecord, error) {
	return p.Parse(line)
}

// match returns the closest template with the same token count, or nil when
// none clears the similarity threshold.
func (p *DrainParser) match(tokens []string) *template {
	var best *template
	bestScore := 0.0

	for _, tmpl := range p.groups[len(tokens)] {
		score := tmpl.similarity(tokens)
		if score > bestScore {
			best = tmpl
			bestScore = score
		}
	}

	if bestScore < similarityThreshold {
		return nil
	}
	return best
}

func (t *template) similarity(tokens []string) float64 {
	matches := 0
	for i, tok := range t.tokens {
		if tok == tokens[i] || tok == wildcard {
			matches++
		}
	}
	return float64(matches) / float64(len(tokens))
}

func (t *template) merge(tokens []string) {
	for i, tok := range t.tokens {
		if tok != wildcard && tok != tokens[i] {
			t.tokens[i] = wildcard
		}
	}
}

// seedTokens builds a new template, pre-generalising tokens that carry
// digits since those are almost always variable values.
func seedTokens(tokens []string) []string {
	seeded := make([]string, len(tokens))
	for i, tok := range tokens {
		if strings.ContainsAny(tok, "0123456789") {
			seeded[i] = wildcard
		} else {
			seeded[i] = tok
		}
	}
	return seeded
}
