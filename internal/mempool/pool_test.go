package mempool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGetFloat32Length(t *testing.T) {
	buf := GetFloat32(100)
	assert.Len(t, buf, 100)
	assert.GreaterOrEqual(t, cap(buf), 1024)
	PutFloat32(buf)

	big := GetFloat32(5000)
	assert.Len(t, big, 5000)
	PutFloat32(big)
}

func TestPutFloat32Nil(t *testing.T) {
	assert.NotPanics(t, func() { PutFloat32(nil) })
	assert.NotPanics(t, func() { PutBool(nil) })
}

func TestGetBoolIsZeroed(t *testing.T) {
	buf := GetBool(64)
	for i := range buf {
		buf[i] = true
	}
	PutBool(buf)

	again := GetBool(64)
	for i, v := range again {
		assert.False(t, v, "index %d must be reset", i)
	}
	PutBool(again)
}

func TestSizeClassRounding(t *testing.T) {
	assert.Equal(t, 1024, sizeClass(1))
	assert.Equal(t, 1024, sizeClass(1024))
	assert.Equal(t, 2048, sizeClass(1025))
	assert.Equal(t, 5120, sizeClass(5000))
}
