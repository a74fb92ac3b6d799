package parser

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/nerdcore/filecore/internal/langdetect"
	"github.com/nerdcore/filecore/internal/logging"
)

// explicitMarkerRe matches an explicit operation fence, e.g. "```CREATE:src/a.go".
var explicitMarkerRe = regexp.MustCompile(`(?m)^` + "```" + `(CREATE|UPDATE|APPEND|DELETE|RENAME):(.+)$`)

// fencedBlockRe matches any fenced code block, capturing an optional language tag.
var fencedBlockRe = regexp.MustCompile("(?s)```([a-zA-Z0-9_+-]*)\\n(.*?)```")

// pathMentionRe matches a path-like token near a fence, used for implicit inference.
var pathMentionRe = regexp.MustCompile(`[\w./-]+\.[a-zA-Z0-9]{1,8}`)

const (
	explicitConfidence     = 0.95
	implicitConfidenceCap  = 0.75
	maxRationaleParagraph  = 500 // characters of preceding prose considered for rationale
)

// Parse extracts a batch of file operations from a free-text consensus
// response. It never fails on malformed input: unparseable fences are
// reported in UnparsedBlocks rather than surfaced as an error.
func Parse(responseText string, ctx OperationContext) (*ParseResult, error) {
	timer := logging.StartTimer(logging.CategoryParser, "Parse")
	defer timer.Stop()

	result := &ParseResult{}

	explicitSpans := parseExplicit(responseText, result)
	parseImplicit(responseText, explicitSpans, result)

	resolveDependencies(result)

	if cycleDetected(result.Operations) {
		result.Warnings = append(result.Warnings, "dependency cycle detected; operations emitted as unordered")
		for i := range result.Operations {
			result.Operations[i].Dependencies = nil
		}
	}

	result.OverallConfidence = overallConfidence(result.Operations)

	logging.ParserDebug("parsed %d operations, %d unparsed blocks, confidence=%.1f",
		len(result.Operations), len(result.UnparsedBlocks), result.OverallConfidence)

	return result, nil
}

// parseExplicit recognizes ```OP:path fences and returns the byte spans they
// occupied so implicit inference can skip over them.
func parseExplicit(text string, result *ParseResult) []SourceSpan {
	var spans []SourceSpan

	matches := explicitMarkerRe.FindAllStringSubmatchIndex(text, -1)
	for _, m := range matches {
		opTag := text[m[2]:m[3]]
		pathPart := text[m[4]:m[5]]

		fenceStart := m[0]
		bodyStart := m[1]
		closeIdx := strings.Index(text[bodyStart:], "```")
		if closeIdx < 0 {
			result.UnparsedBlocks = append(result.UnparsedBlocks, UnparsedBlock{
				Content:       text[fenceStart:minInt(len(text), fenceStart+200)],
				Span:          SourceSpan{Start: fenceStart, End: len(text)},
				Clarification: fmt.Sprintf("unterminated %s fence; what was the intended content?", opTag),
			})
			continue
		}
		body := text[bodyStart : bodyStart+closeIdx]
		body = strings.TrimPrefix(body, "\n")
		bodyEnd := bodyStart + closeIdx + 3
		span := SourceSpan{Start: fenceStart, End: bodyEnd}

		op, ok := buildExplicitOp(opTag, pathPart, body)
		if !ok {
			result.UnparsedBlocks = append(result.UnparsedBlocks, UnparsedBlock{
				Content:       text[fenceStart:bodyEnd],
				Span:          span,
				Clarification: fmt.Sprintf("could not parse %s marker %q", opTag, pathPart),
			})
			continue
		}

		meta := OperationWithMetadata{
			Operation:         op,
			ParsingConfidence: explicitConfidence,
			Rationale:         extractRationale(text, fenceStart),
			SourceSpan:        span,
		}
		result.Operations = append(result.Operations, meta)
		spans = append(spans, span)
	}

	return spans
}

func buildExplicitOp(opTag, pathPart, body string) (FileOperation, bool) {
	pathPart = strings.TrimSpace(pathPart)
	switch opTag {
	case "RENAME":
		parts := strings.SplitN(pathPart, " to ", 2)
		if len(parts) != 2 {
			parts = strings.SplitN(pathPart, "→", 2)
		}
		if len(parts) != 2 {
			return FileOperation{}, false
		}
		from := strings.TrimSpace(parts[0])
		to := strings.TrimSpace(parts[1])
		if !validPath(from) || !validPath(to) {
			return FileOperation{}, false
		}
		return FileOperation{Kind: OpRename, Path: from, NewPath: to}, true
	case "DELETE":
		if !validPath(pathPart) {
			return FileOperation{}, false
		}
		return FileOperation{Kind: OpDelete, Path: pathPart}, true
	case "CREATE", "UPDATE", "APPEND":
		if !validPath(pathPart) {
			return FileOperation{}, false
		}
		kind := map[string]OpKind{"CREATE": OpCreate, "UPDATE": OpUpdate, "APPEND": OpAppend}[opTag]
		return FileOperation{Kind: kind, Path: pathPart, Content: body}, true
	default:
		return FileOperation{}, false
	}
}

// validPath rejects absolute paths and parent-directory escapes.
func validPath(p string) bool {
	if p == "" {
		return false
	}
	if strings.HasPrefix(p, "/") || strings.Contains(p, "..") {
		return false
	}
	return true
}

// parseImplicit infers operations from a fenced code block plus a nearby
// path mention, for responses that didn't use explicit markers.
func parseImplicit(text string, explicitSpans []SourceSpan, result *ParseResult) {
	matches := fencedBlockRe.FindAllStringSubmatchIndex(text, -1)
	for _, m := range matches {
		fenceStart, fenceEnd := m[0], m[1]
		if overlapsAny(fenceStart, fenceEnd, explicitSpans) {
			continue
		}

		langTag := text[m[2]:m[3]]
		body := text[m[4]:m[5]]

		before := text[maxInt(0, fenceStart-maxRationaleParagraph):fenceStart]
		pathMatch := lastPathMention(before)
		if pathMatch == "" {
			result.UnparsedBlocks = append(result.UnparsedBlocks, UnparsedBlock{
				Content:       text[fenceStart:fenceEnd],
				Span:          SourceSpan{Start: fenceStart, End: fenceEnd},
				Clarification: "fenced block has no nearby path mention; which file is this for?",
			})
			continue
		}

		lang := langdetect.FromTag(langTag)
		extLang := langdetect.Detect(pathMatch)
		confidence := implicitConfidence(before, pathMatch, lang, extLang)

		kind := OpCreate
		if strings.Contains(strings.ToLower(before), "append") {
			kind = OpAppend
		} else if strings.Contains(strings.ToLower(before), "update") ||
			strings.Contains(strings.ToLower(before), "modify") ||
			strings.Contains(strings.ToLower(before), "edit") {
			kind = OpUpdate
		}

		meta := OperationWithMetadata{
			Operation:         FileOperation{Kind: kind, Path: pathMatch, Content: body},
			ParsingConfidence: confidence,
			Rationale:         extractRationale(text, fenceStart),
			SourceSpan:        SourceSpan{Start: fenceStart, End: fenceEnd},
		}
		result.Operations = append(result.Operations, meta)
	}
}

func implicitConfidence(precedingText, path string, tagLang, extLang langdetect.Language) float64 {
	confidence := 0.4

	idx := strings.LastIndex(precedingText, path)
	if idx >= 0 {
		distance := len(precedingText) - idx - len(path)
		if distance < 20 {
			confidence += 0.2
		} else if distance < 80 {
			confidence += 0.1
		}
	}

	if tagLang != langdetect.Unknown && tagLang == extLang {
		confidence += 0.15
	}

	if confidence > implicitConfidenceCap {
		confidence = implicitConfidenceCap
	}
	return confidence
}

func lastPathMention(text string) string {
	matches := pathMentionRe.FindAllString(text, -1)
	if len(matches) == 0 {
		return ""
	}
	candidate := matches[len(matches)-1]
	if !validPath(candidate) {
		return ""
	}
	return candidate
}

// extractRationale attaches the paragraph of prose immediately preceding a
// code block, up to one paragraph.
func extractRationale(text string, fenceStart int) string {
	before := text[:fenceStart]
	paragraphs := strings.Split(strings.TrimRight(before, "\n"), "\n\n")
	if len(paragraphs) == 0 {
		return ""
	}
	last := strings.TrimSpace(paragraphs[len(paragraphs)-1])
	last = strings.TrimSuffix(last, "```")
	return strings.TrimSpace(last)
}

func overlapsAny(start, end int, spans []SourceSpan) bool {
	for _, s := range spans {
		if start < s.End && end > s.Start {
			return true
		}
	}
	return false
}

// resolveDependencies links operations whose content references another
// operation's path via an import/include statement for its detected
// language, or whose path is a child of a previously created directory.
func resolveDependencies(result *ParseResult) {
	pathIndex := make(map[string]int, len(result.Operations))
	for i, op := range result.Operations {
		pathIndex[op.Operation.Path] = i
	}

	for i := range result.Operations {
		op := &result.Operations[i]
		lang := langdetect.Detect(op.Operation.Path)
		for j, other := range result.Operations {
			if i == j {
				continue
			}
			if referencesPath(op.Operation.Content, other.Operation.Path, lang) {
				op.Dependencies = appendUnique(op.Dependencies, j)
			}
			if isParentDirOf(other.Operation.Path, op.Operation.Path) && other.Operation.Kind == OpCreate {
				op.Dependencies = appendUnique(op.Dependencies, j)
			}
		}
	}
}

func referencesPath(content, candidatePath string, lang langdetect.Language) bool {
	if content == "" || candidatePath == "" {
		return false
	}
	base := strings.TrimSuffix(candidatePath, pathExt(candidatePath))
	module := strings.ReplaceAll(base, "/", ".")
	switch lang {
	case langdetect.Go:
		return strings.Contains(content, "\""+base+"\"") || strings.Contains(content, candidatePath)
	case langdetect.Python:
		return strings.Contains(content, "import "+module) || strings.Contains(content, "from "+module)
	case langdetect.JavaScript, langdetect.TypeScript:
		return strings.Contains(content, "'"+base+"'") || strings.Contains(content, "\""+base+"\"")
	default:
		return strings.Contains(content, candidatePath)
	}
}

func pathExt(p string) string {
	if idx := strings.LastIndex(p, "."); idx >= 0 {
		return p[idx:]
	}
	return ""
}

func isParentDirOf(dirPath, childPath string) bool {
	dirPath = strings.TrimSuffix(dirPath, "/")
	return strings.HasPrefix(childPath, dirPath+"/")
}

func appendUnique(s []int, v int) []int {
	for _, x := range s {
		if x == v {
			return s
		}
	}
	return append(s, v)
}

// cycleDetected runs a DFS cycle check over the dependency graph.
func cycleDetected(ops []OperationWithMetadata) bool {
	const (
		white = 0
		gray  = 1
		black = 2
	)
	state := make([]int, len(ops))

	var visit func(i int) bool
	visit = func(i int) bool {
		state[i] = gray
		for _, dep := range ops[i].Dependencies {
			if dep < 0 || dep >= len(ops) {
				continue
			}
			if state[dep] == gray {
				return true
			}
			if state[dep] == white && visit(dep) {
				return true
			}
		}
		state[i] = black
		return false
	}

	for i := range ops {
		if state[i] == white {
			if visit(i) {
				return true
			}
		}
	}
	return false
}

func overallConfidence(ops []OperationWithMetadata) float64 {
	if len(ops) == 0 {
		return 0
	}
	sum := 0.0
	for _, op := range ops {
		sum += op.ParsingConfidence
	}
	return (sum / float64(len(ops))) * 100
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
