package star_test

import (
	"testing"

	"github.com/olapio/starcache/star"
	"github.com/stretchr/testify/assert"
)

func TestNullSafeSort(t *testing.T) {
	values := []any{nil, "CA", "OR"}
	star.SortValues(values)
	assert.Equal(t, []any{nil, "CA", "OR"}, values)

	values = []any{"OR", nil, "CA"}
	star.SortValues(values)
	assert.Equal(t, []any{nil, "CA", "OR"}, values)
}

func TestCompareValues(t *testing.T) {
	assert.Equal(t, 0, star.CompareValues(nil, nil))
	assert.Equal(t, -1, star.CompareValues(nil, "CA"))
	assert.Equal(t, 1, star.CompareValues("CA", nil))
	assert.Equal(t, 0, star.CompareValues(5, 5.0))
	assert.Equal(t, -1, star.CompareValues(5, 10))
	assert.Equal(t, 1, star.CompareValues("b", "a"))
}
