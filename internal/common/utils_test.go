package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitCodes(t *testing.T) {
	assert.Equal(t, []string{"MEX", "ARG", "MEX"}, SplitCodes(" mex,ARG, ,mex "))
	assert.Empty(t, SplitCodes(""))
	assert.Empty(t, SplitCodes(",,"))
}
