package webauthn

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustMdsEntry(t *testing.T, aaid, legal string) *MdsEntry {
	t.Helper()
	raw := []byte(`{"aaid":"` + aaid + `","description":"test authenticator"}`)
	e, err := canonicalizeMdsEntry(raw, tocDescriptor{AAID: aaid}, legal, "test-collection")
	require.NoError(t, err)
	return e
}

// TestFindMdsEntryAcrossCollections covers scenario 6: the same AAID
// registered in two independently registered collections resolves to both
// entries, in registration order, with per-collection metadata intact.
func TestFindMdsEntryAcrossCollections(t *testing.T) {
	ResetMdsCollections()
	t.Cleanup(ResetMdsCollections)

	mds1 := NewMdsCollection("mds1")
	mds1.entries["4e4e#4005"] = []*MdsEntry{mustMdsEntry(t, "4e4e#4005", "")}
	require.NoError(t, AddMdsCollection(mds1))

	mds2 := NewMdsCollection("mds2")
	mds2.entries["4e4e#4005"] = []*MdsEntry{mustMdsEntry(t, "4e4e#4005", "mds2-legal-header")}
	require.NoError(t, AddMdsCollection(mds2))

	entries, err := FindMdsEntry("4e4e#4005")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Empty(t, entries[0].LegalHeader)
	assert.Equal(t, "mds2-legal-header", entries[1].LegalHeader)
	// The two collections describe the same authenticator, so the decoded
	// metadata statement itself should be identical across both entries.
	if diff := cmp.Diff(entries[0].MetadataStatement, entries[1].MetadataStatement); diff != "" {
		t.Errorf("metadata statement mismatch across collections (-mds1 +mds2):\n%s", diff)
	}
}

func TestFindMdsEntryFailsWithNoMDSWhenNoneRegistered(t *testing.T) {
	ResetMdsCollections()
	_, err := FindMdsEntry("anything")
	require.Error(t, err)
	assert.True(t, IsKind(err, KindNoMDS))
}

func TestMdsCollectionValidateMatchesByHash(t *testing.T) {
	c := NewMdsCollection("test")
	stmt := `{"aaid":"dead#beef","description":"widget"}`
	sum := sha256Sum([]byte(stmt))
	c.toc = []tocDescriptor{{AAID: "dead#beef", Hash: base64URLOf(sum[:])}}
	require.NoError(t, c.AddEntry(base64URLOf([]byte(stmt))))

	require.NoError(t, c.Validate())
	entries := c.FindEntry("dead#beef")
	require.Len(t, entries, 1)
	assert.Equal(t, "widget", entries[0].Description)
}

func TestMdsCollectionValidateDropsUnmatchedStatements(t *testing.T) {
	c := NewMdsCollection("test")
	// No TOC entries at all, so nothing can match.
	require.NoError(t, c.AddEntry(base64URLOf([]byte(`{"aaid":"dead#beef"}`))))
	require.NoError(t, c.Validate())
	assert.Empty(t, c.FindEntry("dead#beef"))
}
