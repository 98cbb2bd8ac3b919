package plan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSchemaLookup(t *testing.T) {
	s := Schema{{Name: "id", Type: Int64}, {Name: "name", Type: Utf8}}
	assert.True(t, s.Has("id"))
	assert.False(t, s.Has("missing"))
	assert.Equal(t, 1, s.IndexOf("name"))
	assert.Equal(t, -1, s.IndexOf("missing"))

	f, ok := s.Field("id")
	require.True(t, ok)
	assert.Equal(t, Int64, f.Type)
}

func TestSchemaWith(t *testing.T) {
	s := Schema{{Name: "id", Type: Int64}}
	s2 := s.With(Field{Name: "name", Type: Utf8})
	require.Len(t, s2, 2)
	assert.Len(t, s, 1, "With mutated the original schema")

	s3 := s2.With(Field{Name: "id", Type: Float64})
	require.Len(t, s3, 2)
	assert.Equal(t, Float64, s3[0].Type, "With should replace an existing column in place")
}

func TestSchemaClone(t *testing.T) {
	s := Schema{{Name: "id", Type: Int64}}
	clone := s.Clone()
	clone[0].Name = "renamed"
	assert.Equal(t, "id", s[0].Name, "Clone shares storage with the original")
}
