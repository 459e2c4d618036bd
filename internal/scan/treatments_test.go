package scan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookupTreatmentAcceptsNamesAndSlugs(t *testing.T) {
	for _, name := range []string{"Bacterial Leaf Blight", "bacterial_leaf_blight", "bacterial-leaf-blight", "  BACTERIAL LEAF  BLIGHT "} {
		tr, ok := LookupTreatment(name)
		require.True(t, ok, name)
		assert.Equal(t, BacterialLeafBlight, tr.Disease)
		assert.Equal(t, "bacterial-leaf-blight", tr.Slug)
	}

	_, ok := LookupTreatment("Sheath Blight")
	assert.False(t, ok)
}

func TestTreatmentsCoversEveryClass(t *testing.T) {
	list := Treatments()

	names := make([]string, len(list))
	for i, tr := range list {
		names[i] = tr.Disease
		assert.NotEmpty(t, tr.Management, tr.Disease)
		assert.NotEmpty(t, tr.Slug, tr.Disease)
	}

	assert.Equal(t, []string{
		BacterialLeafBlight, BrownSpot, Healthy, LeafBlast, LeafScald, NarrowBrownSpot, Tungro,
	}, names)
}

func TestLookupTreatmentReturnsCopy(t *testing.T) {
	tr, ok := LookupTreatment(Tungro)
	require.True(t, ok)
	tr.Severity = "changed"

	again, _ := LookupTreatment(Tungro)
	assert.Equal(t, "high", again.Severity)
}
