package resources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsAllowed(t *testing.T) {
	assert.True(t, IsAllowed("articles"))
	assert.True(t, IsAllowed("social_links"))

	assert.False(t, IsAllowed("not_a_real_table"))
	assert.False(t, IsAllowed(""))
	assert.False(t, IsAllowed("Articles"), "lookup is case sensitive")
	assert.False(t, IsAllowed("content_plans"), "engine metadata is not content")
}

func TestParse(t *testing.T) {
	r, err := Parse("projects")
	require.NoError(t, err)
	assert.Equal(t, Projects, r)

	_, err = Parse("users")
	assert.ErrorIs(t, err, ErrUnknownResource)
	assert.Contains(t, err.Error(), `"users"`)
}

func TestResourceName_Valid(t *testing.T) {
	assert.True(t, FAQs.Valid())
	assert.False(t, ResourceName("secrets").Valid())
}

func TestAll_SortedAndComplete(t *testing.T) {
	all := All()
	require.Len(t, all, 10)
	for i := 1; i < len(all); i++ {
		assert.Less(t, string(all[i-1]), string(all[i]))
	}
	for _, r := range all {
		_, ok := Lookup(r)
		assert.True(t, ok, "every listed resource has traits: %s", r)
	}
}

func TestLookup_Traits(t *testing.T) {
	traits, ok := Lookup(Articles)
	require.True(t, ok)
	assert.Equal(t, "excerpt", traits.DescriptionField)
	assert.True(t, traits.Publishable)
	assert.True(t, traits.Stales)
	assert.Contains(t, traits.Required, "title")

	traits, ok = Lookup(Skills)
	require.True(t, ok)
	assert.False(t, traits.Publishable)
	assert.False(t, traits.Stales)

	_, ok = Lookup("nope")
	assert.False(t, ok)
}
