package relations

import (
	"regexp"
	"strings"

	"github.com/iceymoss/discovery-engine/pkg/db/objects"
)

// Extracted is one external identifier found in an artifact's text.
type Extracted struct {
	// Source is the source tag the identifier belongs to.
	Source string
	// ExternalID is the identifier in the form ingestion stores it.
	ExternalID string
	// Confidence of the pattern match.
	Confidence float64
}

var (
	// arXiv ids like "arXiv:2301.04567" or "arxiv.org/abs/2301.04567v2".
	arxivRe = regexp.MustCompile(`(?i)(?:arxiv:\s*|arxiv\.org/(?:abs|pdf)/)(\d{4}\.\d{4,5})(?:v\d+)?`)

	// DOIs like "10.1145/3292500.3330919". The trailing char class excludes
	// sentence punctuation that regularly trails a DOI in prose.
	doiRe = regexp.MustCompile(`\b(10\.\d{4,9}/[-._;()/:A-Za-z0-9]*[A-Za-z0-9])`)

	// Repository slugs like "github.com/iceymoss/discovery-engine".
	repoRe = regexp.MustCompile(`(?i)github\.com/([A-Za-z0-9_.-]+/[A-Za-z0-9_][A-Za-z0-9_.-]*)`)
)

// ExtractIdentifiers pulls every recognizable external identifier out of the
// text. Pattern matches are high confidence: 0.95 for arXiv/DOI, 0.90 for
// repository URLs (READMEs link repos for many reasons).
func ExtractIdentifiers(text string) []Extracted {
	var out []Extracted
	seen := make(map[string]bool)

	add := func(source, id string, confidence float64) {
		key := source + "\x00" + id
		if id == "" || seen[key] {
			return
		}
		seen[key] = true
		out = append(out, Extracted{Source: source, ExternalID: id, Confidence: confidence})
	}

	for _, m := range arxivRe.FindAllStringSubmatch(text, -1) {
		add(objects.SourcePaperIndex, m[1], 0.95)
	}
	for _, m := range doiRe.FindAllStringSubmatch(text, -1) {
		add(objects.SourcePaperIndex, m[1], 0.95)
	}
	for _, m := range repoRe.FindAllStringSubmatch(text, -1) {
		slug := strings.TrimSuffix(m[1], ".git")
		add(objects.SourceCodeHost, strings.ToLower(slug), 0.90)
	}
	return out
}

// RelationType picks the edge type from the (source, target) source pair.
func RelationType(sourceTag, targetTag string) string {
	switch {
	case sourceTag == objects.SourceCodeHost && targetTag == objects.SourcePaperIndex:
		return objects.RelationImplement
	case sourceTag == objects.SourceSocialPlatform && targetTag == objects.SourcePaperIndex:
		return objects.RelationDiscuss
	case sourceTag == objects.SourcePaperIndex && targetTag == objects.SourcePaperIndex:
		return objects.RelationCite
	default:
		return objects.RelationReference
	}
}
