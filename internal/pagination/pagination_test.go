package pagination

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNew_Clamps(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name              string
		page, limit, max  int
		wantPage, wantLim int
	}{
		{"defaults", 0, 0, 50, 1, 20},
		{"negative page", -3, 10, 50, 1, 10},
		{"limit above max", 2, 500, 50, 2, 50},
		{"limit at max", 1, 50, 50, 1, 50},
		{"default above max", 1, 0, 5, 1, 5},
		{"unset max", 1, 1000, 0, 1, DefaultMax},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p := New(tt.page, tt.limit, DefaultLimit, tt.max)
			assert.Equal(t, tt.wantPage, p.Page)
			assert.Equal(t, tt.wantLim, p.Limit)
		})
	}
}

func TestParams_OffsetAndPages(t *testing.T) {
	t.Parallel()
	p := New(3, 10, DefaultLimit, DefaultMax)
	assert.Equal(t, 20, p.Offset())

	assert.Equal(t, 0, p.Pages(0))
	assert.Equal(t, 1, p.Pages(1))
	assert.Equal(t, 1, p.Pages(10))
	assert.Equal(t, 2, p.Pages(11))
	assert.Equal(t, 10, p.Pages(100))
}

// For every total and limit, the last page holds total-(pages-1)*limit
// items, which equals limit when total is an exact multiple.
func TestParams_LastPageSize(t *testing.T) {
	t.Parallel()
	for limit := 1; limit <= 12; limit++ {
		for total := int64(1); total <= 50; total++ {
			p := New(1, limit, DefaultLimit, DefaultMax)
			pages := p.Pages(total)
			last := total - int64(pages-1)*int64(limit)

			assert.Greater(t, last, int64(0))
			assert.LessOrEqual(t, last, int64(limit))
			if total%int64(limit) == 0 {
				assert.Equal(t, int64(limit), last)
			}
		}
	}
}

func TestNewResult_EmptyItems(t *testing.T) {
	t.Parallel()
	r := NewResult[string](nil, 0, New(1, 10, DefaultLimit, DefaultMax))
	assert.NotNil(t, r.Items)
	assert.Equal(t, 0, r.Pages)
	assert.Equal(t, 1, r.Page)
}

func TestNew_HugePageDoesNotOverflow(t *testing.T) {
	t.Parallel()
	p := New(math.MaxInt, 20, DefaultLimit, DefaultMax)
	assert.Equal(t, math.MaxInt/20, p.Page)
	assert.GreaterOrEqual(t, p.Offset(), 0)
	assert.Equal(t, math.MaxInt-1, New(math.MaxInt, 1, DefaultLimit, DefaultMax).Offset())
}
