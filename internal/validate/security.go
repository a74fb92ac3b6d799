package validate

import (
	"path/filepath"
	"regexp"
	"strings"

	"github.com/nerdcore/filecore/internal/parser"
)

// credentialPatterns flags content that looks like an embedded secret. Any
// match forces the batch's SecurityViolation flag, which the decision engine
// treats as an absolute gate: a flagged batch never auto-executes.
var credentialPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)AKIA[0-9A-Z]{16}`),                                // AWS access key ID
	regexp.MustCompile(`(?i)-----BEGIN (RSA |EC |OPENSSH |DSA |)PRIVATE KEY-----`),
	regexp.MustCompile(`(?i)\b(api|secret|access)[_-]?key\s*[:=]\s*['"][A-Za-z0-9+/_-]{16,}['"]`),
	regexp.MustCompile(`(?i)\bpassword\s*[:=]\s*['"][^'"]{4,}['"]`),
	regexp.MustCompile(`(?i)\btoken\s*[:=]\s*['"][A-Za-z0-9._-]{16,}['"]`),
	regexp.MustCompile(`(?i)ghp_[A-Za-z0-9]{36}`),  // GitHub personal access token
	regexp.MustCompile(`(?i)sk-[A-Za-z0-9]{20,}`),  // generic "sk-" style API key
}

// sensitivePathSuffixes are paths whose mere creation/modification is a
// security-relevant event, regardless of content.
var sensitivePathSuffixes = []string{
	".env",
	".pem",
	".key",
	"id_rsa",
	"id_ed25519",
	".secret",
	"credentials.json",
	".netrc",
	".npmrc",
	".pgpass",
}

// SecurityCheck scans operation content for embedded credentials and flags
// operations against known sensitive paths.
func SecurityCheck(ops []parser.OperationWithMetadata) []Check {
	checks := make([]Check, 0, len(ops))

	for i, op := range ops {
		matched := false
		for _, re := range credentialPatterns {
			if re.MatchString(op.Operation.Content) {
				matched = true
				break
			}
		}
		if matched {
			checks = append(checks, Check{
				Category:       "security",
				Status:         StatusFail,
				Severity:       SeverityCritical,
				Message:        "operation content matches a credential/secret pattern",
				OperationIndex: i,
			})
			continue
		}

		lowerPath := strings.ToLower(op.Operation.Path)
		for _, suffix := range sensitivePathSuffixes {
			if strings.HasSuffix(lowerPath, suffix) || filepath.Base(lowerPath) == suffix {
				checks = append(checks, Check{
					Category:       "security",
					Status:         StatusFail,
					Severity:       SeverityCritical,
					Message:        "operation targets a sensitive path: " + op.Operation.Path,
					OperationIndex: i,
				})
				matched = true
				break
			}
		}

		if !matched {
			checks = append(checks, Check{
				Category:       "security",
				Status:         StatusPass,
				Severity:       SeverityInfo,
				Message:        "no credential pattern or sensitive path detected",
				OperationIndex: i,
			})
		}
	}

	return checks
}
