package rules

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDEPostcode(t *testing.T) {
	tests := []struct {
		input string
		want  int
		ok    bool
	}{
		{"10115", 10115, true},
		{"D-10115", 10115, true},
		{"d-80331 München", 80331, true},
		{"01067 Dresden", 1067, true},
		{"123", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := NormalizeDEPostcode(tt.input)
		assert.Equal(t, tt.ok, ok, tt.input)
		assert.Equal(t, tt.want, got, tt.input)
	}
}

func TestSubdivisionFromPostcode(t *testing.T) {
	code, ok := SubdivisionFromPostcode("10115")
	require.True(t, ok)
	assert.Equal(t, "DE-BE", code)

	code, ok = SubdivisionFromPostcode("D-80331")
	require.True(t, ok)
	assert.Equal(t, "DE-BY", code)

	code, ok = SubdivisionFromPostcode("20095")
	require.True(t, ok)
	assert.Equal(t, "DE-HH", code)
}

func TestSubdivisionFromPostcodeAmbiguous(t *testing.T) {
	// 07919 sits on the Thüringen/Sachsen border and maps to both ranges;
	// the lookup must refuse to guess.
	_, ok := SubdivisionFromPostcode("07919")
	assert.False(t, ok)
}

func TestSubdivisionFromPostcodeUnknown(t *testing.T) {
	_, ok := SubdivisionFromPostcode("00001")
	assert.False(t, ok)

	_, ok = SubdivisionFromPostcode("not a postcode")
	assert.False(t, ok)
}

func TestLooksLikeDEPostcode(t *testing.T) {
	assert.True(t, LooksLikeDEPostcode("10115"))
	assert.True(t, LooksLikeDEPostcode("D-10115"))
	assert.True(t, LooksLikeDEPostcode("d-1011"))
	assert.False(t, LooksLikeDEPostcode("1011"))
	assert.False(t, LooksLikeDEPostcode("SW1A 1AA"))
	assert.False(t, LooksLikeDEPostcode("10115 Berlin"))
}
