package step

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/wrangle/pkg/row"
)

func TestWrap_Failure(t *testing.T) {
	info := Info{Line: 3, Directive: "swap :a :b", Policy: FailBatch}
	err := Wrap(info, 7, Errorf("b", "Destination column not found."))

	assert.Equal(t, "b", err.Column)
	assert.Equal(t, 7, err.Row)
	assert.Equal(t, "swap :a :b (line 3): row 7: Destination column not found.", err.Error())
}

func TestWrap_ColumnNotFound(t *testing.T) {
	info := Info{Line: 1, Directive: "copy :x :y"}
	cause := &row.ColumnNotFoundError{Column: "x"}
	err := Wrap(info, 0, cause)

	assert.Equal(t, "x", err.Column)

	var nf *row.ColumnNotFoundError
	require.True(t, errors.As(err, &nf), "cause must stay reachable")
	assert.Equal(t, "x", nf.Column)
}

func TestPolicy_String(t *testing.T) {
	assert.Equal(t, "fail-batch", FailBatch.String())
	assert.Equal(t, "skip-row", SkipRow.String())
	assert.Equal(t, "policy(9)", Policy(9).String())
}
