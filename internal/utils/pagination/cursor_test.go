package pagination

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	token, err := Encode(Cursor{ID: "0199a1f2-0000-7000-8000-000000000001", UpdatedUnix: 1700000000000})
	require.NoError(t, err)

	c, err := Decode(token)
	require.NoError(t, err)
	assert.Equal(t, "0199a1f2-0000-7000-8000-000000000001", c.ID)
	assert.Equal(t, int64(1700000000000), c.UpdatedUnix)
	assert.False(t, c.IsZero())
}

func TestDecode_Empty(t *testing.T) {
	c, err := Decode("")
	require.NoError(t, err)
	assert.True(t, c.IsZero())
}

func TestDecode_Garbage(t *testing.T) {
	_, err := Decode("not base64!!")
	assert.EqualError(t, err, "invalid pagination token")

	_, err = Decode("bm90LWpzb24=") // "not-json"
	assert.EqualError(t, err, "invalid pagination token")
}
