package climatology

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTimeIndexFileCode(t *testing.T) {
	testCases := []struct {
		idx  TimeIndex
		code string
	}{
		{January, "01"},
		{December, "12"},
		{Winter, "13"},
		{Autumn, "16"},
		{Annual, "00"},
	}
	for _, tc := range testCases {
		t.Run(tc.idx.String(), func(t *testing.T) {
			assert.Equal(t, tc.code, tc.idx.FileCode())
			assert.True(t, tc.idx.Valid())
		})
	}
}

func TestTimeIndexClassification(t *testing.T) {
	assert.True(t, TimeIndex(6).IsMonthly())
	assert.False(t, Winter.IsMonthly())
	assert.False(t, Annual.IsMonthly())
	assert.False(t, TimeIndex(0).Valid())
	assert.False(t, TimeIndex(18).Valid())
	assert.Equal(t, "season-2", TimeIndex(14).String())
	assert.Equal(t, "invalid(0)", TimeIndex(0).String())
}
