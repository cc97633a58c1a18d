package resolver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRows() []Descriptor {
	return []Descriptor{
		{DomainMatch: "service-a.example", Kind: KindStatic, AdapterID: "service-a"},
		{DomainMatch: "service-b.example", Kind: KindDynamic, AdapterID: "service-b"},
		{DomainMatch: "example", Kind: KindStatic, AdapterID: "catch-all"},
	}
}

func TestRegistryFirstMatchWins(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(testRows(), false)
	require.NoError(t, err)

	tests := map[string]string{
		"https://service-a.example/abc":          "service-a",
		"https://service-b.example/1/x":          "service-b",
		"https://other.example/x":                "catch-all",
		"https://x.test/?next=service-b.example": "service-b",
	}
	for in, want := range tests {
		for i := 0; i < 3; i++ {
			row, err := reg.Resolve(in)
			require.NoError(t, err, in)
			assert.Equal(t, want, row.AdapterID, in)
		}
	}
}

func TestRegistryUnmatched(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(testRows()[:2], false)
	require.NoError(t, err)
	_, err = reg.Resolve("https://unknown.test/x")
	assert.ErrorIs(t, err, ErrNoAdapter)
}

func TestRegistryMatchHostIgnoresQuery(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(testRows()[:2], true)
	require.NoError(t, err)

	_, err = reg.Resolve("https://x.test/?next=service-b.example")
	assert.ErrorIs(t, err, ErrNoAdapter)

	row, err := reg.Resolve("https://SERVICE-A.example/abc")
	require.NoError(t, err)
	assert.Equal(t, "service-a", row.AdapterID)
}

func TestNewRegistryValidation(t *testing.T) {
	t.Parallel()

	bad := [][]Descriptor{
		{{DomainMatch: " ", Kind: KindStatic, AdapterID: "a"}},
		{{DomainMatch: "a", Kind: KindStatic}},
		{{DomainMatch: "a", Kind: "mixed", AdapterID: "a"}},
	}
	for _, rows := range bad {
		_, err := NewRegistry(rows, false)
		assert.Error(t, err, rows)
	}
}

func TestRegistryRowsIsACopy(t *testing.T) {
	t.Parallel()

	reg, err := NewRegistry(testRows(), false)
	require.NoError(t, err)
	rows := reg.Rows()
	rows[0].AdapterID = "mutated"
	assert.Equal(t, "service-a", reg.Rows()[0].AdapterID)
}
