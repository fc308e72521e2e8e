package validation

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/tigerroll/tablesync/pkg/batch/core/domain/model"
)

func TestCanonicalValue(t *testing.T) {
	ts := time.Date(2024, 1, 1, 9, 0, 0, 500, time.FixedZone("JST", 9*3600))

	assert.Equal(t, `\N`, CanonicalValue(nil))
	assert.Equal(t, "42", CanonicalValue(int64(42)))
	assert.Equal(t, "42", CanonicalValue([]byte("42")))
	assert.Equal(t, "42", CanonicalValue("42"))
	assert.Equal(t, "0.25", CanonicalValue(0.25))
	assert.Equal(t, "true", CanonicalValue(true))
	assert.Equal(t, "2024-01-01T00:00:00.0000005Z", CanonicalValue(ts))
	assert.Equal(t, `a\tb\nc\\d`, CanonicalValue("a\tb\nc\\d"))
}

func TestFingerprint_OrderAndBoundaries(t *testing.T) {
	sum := func(rows ...model.Row) string {
		fp := NewFingerprint()
		for _, r := range rows {
			fp.Add(r)
		}
		return fp.Sum()
	}

	a := model.Row{int64(1), "x"}
	b := model.Row{int64(2), "y"}
	assert.Equal(t, sum(a, b), sum(model.Row{[]byte("1"), "x"}, b))
	assert.NotEqual(t, sum(a, b), sum(b, a))
	assert.NotEqual(t, sum(model.Row{"a\tb"}), sum(model.Row{"a", "b"}))
	assert.NotEqual(t, sum(model.Row{nil}), sum(model.Row{""}))

	fp := NewFingerprint()
	fp.Add(a)
	fp.Add(b)
	assert.Equal(t, int64(2), fp.Rows())
}
