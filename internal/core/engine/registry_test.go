package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mindgate/internal/core"
)

func testModels() map[string]core.ModelDescriptor {
	return map[string]core.ModelDescriptor{
		"sora-2-free":    {ProviderID: 153, ProviderType: 1, Category: core.CategoryVideo, DisplayName: "Sora-2 Video"},
		"gemini-3-image": {ProviderID: 190, ProviderType: 8, Category: core.CategoryImage, DisplayName: "Gemini-3 Pro"},
	}
}

func TestRegistryResolve(t *testing.T) {
	reg, err := NewRegistry(testModels(), "sora-2-free")
	require.NoError(t, err)

	testCases := []struct {
		name    string
		key     string
		wantKey string
		wantID  int
	}{
		{"known key", "gemini-3-image", "gemini-3-image", 190},
		{"unknown key falls back", "gpt-4o", "sora-2-free", 153},
		{"empty key falls back", "", "sora-2-free", 153},
		{"padded key", "  gemini-3-image ", "gemini-3-image", 190},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			key, desc := reg.Resolve(tc.key)
			assert.Equal(t, tc.wantKey, key)
			assert.Equal(t, tc.wantID, desc.ProviderID)
		})
	}
}

func TestNewRegistryValidation(t *testing.T) {
	_, err := NewRegistry(nil, "x")
	assert.Error(t, err)

	_, err = NewRegistry(testModels(), "missing")
	assert.ErrorContains(t, err, "not registered")

	bad := testModels()
	bad["audio"] = core.ModelDescriptor{ProviderID: 1, Category: "audio"}
	_, err = NewRegistry(bad, "sora-2-free")
	assert.ErrorContains(t, err, "unknown category")
}

func TestRegistryListSorted(t *testing.T) {
	reg, err := NewRegistry(testModels(), "sora-2-free")
	require.NoError(t, err)

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "gemini-3-image", list[0].Key)
	assert.Equal(t, "sora-2-free", list[1].Key)
}
