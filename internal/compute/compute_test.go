package compute

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestString(t *testing.T) {
	assert.Equal(t, "cpu", CPU.String())
	assert.Equal(t, "gpu", GPU.String())
}

func TestParse(t *testing.T) {
	c, err := Parse("gpu")
	assert.NoError(t, err)
	assert.Equal(t, GPU, c)

	c, err = Parse("CPU")
	assert.NoError(t, err)
	assert.Equal(t, CPU, c)

	_, err = Parse("tpu")
	assert.Error(t, err)
}
