package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStats_CountLine(t *testing.T) {
	var st stats
	for _, line := range []string{
		"event: snapshot\n",
		"data: {\"version\":1}\n",
		"\n",
		": ping\n",
		"event: balance\r\n",
		"data: {}\n",
		"event: balance\n",
	} {
		st.countLine(line)
	}

	assert.Equal(t, int64(1), st.snapshots.Load())
	assert.Equal(t, int64(2), st.balances.Load())
	assert.Equal(t, int64(1), st.pings.Load())
	assert.Contains(t, st.String(), "balances=2")
}
