package codec

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidate_EmptyStreamReportsNothing(t *testing.T) {
	report, err := Validate(context.Background(), bytes.NewReader(nil))
	require.NoError(t, err)

	assert.False(t, report.PMTFound)
	assert.Empty(t, report.DescribedPIDs)
	assert.Empty(t, report.PESCounts)
}
