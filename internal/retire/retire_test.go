package retire

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter(t *testing.T) {
	c := NewChecker([]string{"python-nose", "python-mox3"})

	kept, dropped := c.Filter([]string{"nova", "python-nose", "python-pbr", "python-mox3"})

	assert.Equal(t, []string{"nova", "python-pbr"}, kept)
	assert.Equal(t, []string{"python-mox3", "python-nose"}, dropped)
}

func TestIsRetired(t *testing.T) {
	c := NewChecker([]string{"python-nose"})

	assert.True(t, c.IsRetired("python-nose"))
	assert.False(t, c.IsRetired("nova"))
}

func TestEmptyList(t *testing.T) {
	c := NewChecker(nil)

	kept, dropped := c.Filter([]string{"nova"})
	assert.Equal(t, []string{"nova"}, kept)
	assert.Empty(t, dropped)
}
