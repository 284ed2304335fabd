package relations

import (
	"testing"

	"github.com/iceymoss/discovery-engine/pkg/db/objects"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractArxivIdentifiers(t *testing.T) {
	text := "Our approach builds on arXiv:2301.04567 and the method at " +
		"https://arxiv.org/abs/1706.03762v5 from 2017."

	got := ExtractIdentifiers(text)
	require.Len(t, got, 2)
	assert.Equal(t, objects.SourcePaperIndex, got[0].Source)
	assert.Equal(t, "2301.04567", got[0].ExternalID)
	assert.Equal(t, 0.95, got[0].Confidence)
	assert.Equal(t, "1706.03762", got[1].ExternalID, "version suffix stripped")
}

func TestExtractDOI(t *testing.T) {
	got := ExtractIdentifiers("See doi 10.1145/3292500.3330919 for details.")
	require.Len(t, got, 1)
	assert.Equal(t, objects.SourcePaperIndex, got[0].Source)
	assert.Equal(t, "10.1145/3292500.3330919", got[0].ExternalID)
	assert.Equal(t, 0.95, got[0].Confidence)
}

func TestExtractRepositorySlug(t *testing.T) {
	got := ExtractIdentifiers("Code at https://github.com/Foo-Bar/Baz.git and github.com/foo-bar/baz again.")
	require.Len(t, got, 1, "case and .git variants collapse to one slug")
	assert.Equal(t, objects.SourceCodeHost, got[0].Source)
	assert.Equal(t, "foo-bar/baz", got[0].ExternalID)
	assert.Equal(t, 0.90, got[0].Confidence)
}

func TestExtractDeduplicates(t *testing.T) {
	got := ExtractIdentifiers("arXiv:2301.04567, also arxiv:2301.04567, see arxiv.org/abs/2301.04567")
	assert.Len(t, got, 1)
}

func TestExtractNothing(t *testing.T) {
	assert.Empty(t, ExtractIdentifiers("no identifiers in this prose at all"))
}

func TestRelationType(t *testing.T) {
	assert.Equal(t, objects.RelationImplement,
		RelationType(objects.SourceCodeHost, objects.SourcePaperIndex))
	assert.Equal(t, objects.RelationDiscuss,
		RelationType(objects.SourceSocialPlatform, objects.SourcePaperIndex))
	assert.Equal(t, objects.RelationCite,
		RelationType(objects.SourcePaperIndex, objects.SourcePaperIndex))
	assert.Equal(t, objects.RelationReference,
		RelationType(objects.SourcePaperIndex, objects.SourceCodeHost))
	assert.Equal(t, objects.RelationReference,
		RelationType(objects.SourceSocialPlatform, objects.SourceCodeHost))
}
