package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestByName(t *testing.T) {
	for _, name := range []string{"json", "go-json"} {
		c, ok := ByName(name)
		require.True(t, ok, name)
		assert.Equal(t, name, c.Name())
	}

	_, ok := ByName("cbor")
	assert.False(t, ok)
}

func TestCodecsAgree(t *testing.T) {
	type payload struct {
		Labels  []string    `json:"labels"`
		Vectors [][]float32 `json:"vectors"`
	}
	in := payload{
		Labels:  []string{"alice", "bob"},
		Vectors: [][]float32{{0.6, 0.8}, {1, 0}},
	}

	stdlib, err := JSON{}.Marshal(in)
	require.NoError(t, err)

	var out payload
	require.NoError(t, GoJSON{}.Unmarshal(stdlib, &out))
	assert.Equal(t, in, out)
}
