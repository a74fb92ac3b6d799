package validate

import (
	"context"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	tsx "github.com/smacker/go-tree-sitter/typescript/typescript"

	"github.com/nerdcore/filecore/internal/langdetect"
	"github.com/nerdcore/filecore/internal/parser"
)

// SyntaxChecker runs post-write syntax validation for the languages with a
// bundled tree-sitter grammar, and a brace-balance heuristic for everything
// else that is curly-brace delimited. Languages with neither a grammar nor
// curly-brace structure (e.g. markdown) are skipped — there is no
// well-formedness notion to check.
type SyntaxChecker struct {
	parsers map[langdetect.Language]*sitter.Parser
}

// NewSyntaxChecker builds parsers for every bundled grammar up front so a
// single checker instance can be reused across a batch.
func NewSyntaxChecker() *SyntaxChecker {
	mk := func(lang *sitter.Language) *sitter.Parser {
		p := sitter.NewParser()
		p.SetLanguage(lang)
		return p
	}
	return &SyntaxChecker{
		parsers: map[langdetect.Language]*sitter.Parser{
			langdetect.Go:         mk(golang.GetLanguage()),
			langdetect.Python:     mk(python.GetLanguage()),
			langdetect.JavaScript: mk(javascript.GetLanguage()),
			langdetect.TypeScript: mk(tsx.GetLanguage()),
			langdetect.Rust:       mk(rust.GetLanguage()),
		},
	}
}

// Close releases the underlying tree-sitter parsers.
func (s *SyntaxChecker) Close() {
	for _, p := range s.parsers {
		p.Close()
	}
}

// Check validates the post-write content of every non-delete operation.
func (s *SyntaxChecker) Check(ctx context.Context, ops []parser.OperationWithMetadata) []Check {
	checks := make([]Check, 0, len(ops))
	for i, op := range ops {
		if op.Operation.Kind == parser.OpDelete || op.Operation.Content == "" {
			checks = append(checks, pass(i, "syntax", "no content to validate"))
			continue
		}

		lang := langdetect.Detect(op.Operation.Path)
		if p, ok := s.parsers[lang]; ok && langdetect.HasTreeSitterGrammar(lang) {
			checks = append(checks, s.checkWithGrammar(ctx, i, p, op.Operation.Content))
			continue
		}

		if langdetect.IsCurlyBrace(lang) {
			checks = append(checks, checkBraceBalance(i, op.Operation.Content))
			continue
		}

		checks = append(checks, pass(i, "syntax", "no syntax checker available for this language"))
	}
	return checks
}

func (s *SyntaxChecker) checkWithGrammar(ctx context.Context, index int, p *sitter.Parser, content string) Check {
	tree, err := p.ParseCtx(ctx, nil, []byte(content))
	if err != nil {
		return fail(index, "syntax", SeverityError, "tree-sitter parse failed: "+err.Error())
	}
	defer tree.Close()

	if tree.RootNode().HasError() {
		return fail(index, "syntax", SeverityError, "content contains a syntax error")
	}
	return pass(index, "syntax", "parsed without syntax errors")
}

func checkBraceBalance(index int, content string) Check {
	depth := 0
	inString := false
	var stringDelim byte
	for i := 0; i < len(content); i++ {
		c := content[i]
		if inString {
			if c == stringDelim && (i == 0 || content[i-1] != '\\') {
				inString = false
			}
			continue
		}
		switch c {
		case '"', '\'', '`':
			inString = true
			stringDelim = c
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return fail(index, "syntax", SeverityError, "unbalanced braces: unexpected '}'")
			}
		}
	}
	if depth != 0 {
		return fail(index, "syntax", SeverityError, "unbalanced braces: missing closing '}'")
	}
	return pass(index, "syntax", "braces are balanced")
}
