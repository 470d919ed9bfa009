package interval

import (
	"errors"
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func at(hour, minute int) time.Time {
	return time.Date(2031, time.January, 1, hour, minute, 0, 0, time.UTC)
}

func ptr[T any](v T) *T { return &v }

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		lower   *time.Time
		upper   *time.Time
		wantErr bool
	}{
		{name: "ordered bounds", lower: ptr(at(9, 0)), upper: ptr(at(18, 0))},
		{name: "equal bounds", lower: ptr(at(9, 0)), upper: ptr(at(9, 0))},
		{name: "unbounded lower", upper: ptr(at(9, 0))},
		{name: "unbounded upper", lower: ptr(at(9, 0))},
		{name: "fully unbounded"},
		{name: "inverted bounds", lower: ptr(at(18, 0)), upper: ptr(at(9, 0)), wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			iv, err := New(tt.lower, tt.upper)
			if tt.wantErr {
				var rangeErr *InvalidRangeError
				require.True(t, errors.As(err, &rangeErr))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.lower == nil, iv.IsUnboundedLower())
			assert.Equal(t, tt.upper == nil, iv.IsUnboundedUpper())
		})
	}
}

func TestNew_CopiesBounds(t *testing.T) {
	lower := at(9, 0)
	iv, err := New(&lower, nil)
	require.NoError(t, err)

	lower = at(10, 0)
	assert.True(t, iv.Lower.Equal(at(9, 0)))
}

func TestOverlaps(t *testing.T) {
	tests := []struct {
		name string
		a    Period
		b    Period
		want bool
	}{
		{
			name: "partial overlap",
			a:    MustBetween(at(9, 0), at(18, 0)),
			b:    MustBetween(at(17, 0), at(20, 0)),
			want: true,
		},
		{
			name: "touching bounds do not overlap",
			a:    MustBetween(at(9, 0), at(18, 0)),
			b:    MustBetween(at(18, 0), at(20, 0)),
			want: false,
		},
		{
			name: "containment",
			a:    MustBetween(at(9, 0), at(18, 0)),
			b:    MustBetween(at(10, 0), at(11, 0)),
			want: true,
		},
		{
			name: "disjoint",
			a:    MustBetween(at(9, 0), at(10, 0)),
			b:    MustBetween(at(11, 0), at(12, 0)),
			want: false,
		},
		{
			name: "empty overlaps nothing",
			a:    MustBetween(at(10, 0), at(10, 0)),
			b:    MustBetween(at(9, 0), at(18, 0)),
			want: false,
		},
		{
			name: "unbounded upper reaches later interval",
			a:    Period{Lower: ptr(at(9, 0))},
			b:    MustBetween(at(20, 0), at(21, 0)),
			want: true,
		},
		{
			name: "unbounded lower stops at its upper",
			a:    Period{Upper: ptr(at(9, 0))},
			b:    MustBetween(at(9, 0), at(10, 0)),
			want: false,
		},
		{
			name: "fully unbounded overlaps everything non empty",
			a:    Unbounded[time.Time](),
			b:    MustBetween(at(1, 0), at(2, 0)),
			want: true,
		},
		{
			name: "two fully unbounded",
			a:    Unbounded[time.Time](),
			b:    Unbounded[time.Time](),
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Overlaps(tt.b))
			assert.Equal(t, tt.want, tt.b.Overlaps(tt.a))
		})
	}
}

func randomPeriod(rng *rand.Rand) Period {
	base := at(0, 0)
	var lower, upper *time.Time
	lo := rng.Intn(48)
	hi := lo + rng.Intn(12)
	if rng.Intn(6) > 0 {
		lower = ptr(base.Add(time.Duration(lo) * 30 * time.Minute))
	}
	if rng.Intn(6) > 0 {
		upper = ptr(base.Add(time.Duration(hi) * 30 * time.Minute))
	}
	return Period{Lower: lower, Upper: upper}
}

func TestOverlaps_Symmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	for i := 0; i < 5000; i++ {
		a, b := randomPeriod(rng), randomPeriod(rng)
		if a.Overlaps(b) != b.Overlaps(a) {
			t.Fatalf("overlap not symmetric for %s and %s", a, b)
		}
	}
}

func TestOverlaps_MatchesPointSampling(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	// half hour grid, sampled at every quarter hour covers all shared points
	for i := 0; i < 2000; i++ {
		a, b := randomPeriod(rng), randomPeriod(rng)
		shared := false
		for q := -4; q < 4*48; q++ {
			p := at(0, 0).Add(time.Duration(q) * 15 * time.Minute)
			if a.Contains(p) && b.Contains(p) {
				shared = true
				break
			}
		}
		// unbounded pairs may only share points outside the sampled window
		if a.Lower == nil && b.Lower == nil || a.Upper == nil && b.Upper == nil {
			continue
		}
		assert.Equal(t, shared, a.Overlaps(b), "a=%s b=%s", a, b)
	}
}

func TestContains(t *testing.T) {
	iv := MustBetween(at(9, 0), at(18, 0))

	assert.True(t, iv.Contains(at(9, 0)))
	assert.True(t, iv.Contains(at(17, 59)))
	assert.False(t, iv.Contains(at(18, 0)))
	assert.False(t, iv.Contains(at(8, 59)))

	assert.False(t, MustBetween(at(9, 0), at(9, 0)).Contains(at(9, 0)))
	assert.True(t, Period{Lower: ptr(at(9, 0))}.Contains(at(23, 0)))
	assert.True(t, Period{Upper: ptr(at(9, 0))}.Contains(at(0, 0)))
}

func TestDuration(t *testing.T) {
	d, ok := Duration(MustBetween(at(9, 0), at(18, 0)))
	require.True(t, ok)
	assert.Equal(t, 9*time.Hour, d)

	_, ok = Duration(Period{Lower: ptr(at(9, 0))})
	assert.False(t, ok)
	_, ok = Duration(Period{Upper: ptr(at(9, 0))})
	assert.False(t, ok)
}

func TestIntRange(t *testing.T) {
	hours := MustBetween[Int](9, 17)

	assert.True(t, hours.Contains(9))
	assert.False(t, hours.Contains(17))
	assert.True(t, hours.Overlaps(MustBetween[Int](16, 20)))
	assert.False(t, hours.Overlaps(MustBetween[Int](17, 20)))

	_, err := Between[Int](3, 1)
	assert.Error(t, err)
}

func TestString(t *testing.T) {
	assert.Equal(t, "[9, 17)", MustBetween[Int](9, 17).String())
	assert.Equal(t, "[-inf, +inf)", Unbounded[Int]().String())
	assert.Equal(t, "[2031-01-01T09:00:00Z, +inf)", Period{Lower: ptr(at(9, 0))}.String())
}

func TestWithLowerAndUpper(t *testing.T) {
	actual := Unbounded[time.Time]()

	in := at(9, 5)
	actual = actual.WithLower(&in)
	out := at(17, 55)
	actual = actual.WithUpper(&out)

	assert.True(t, actual.Lower.Equal(at(9, 5)))
	assert.True(t, actual.Upper.Equal(at(17, 55)))
	assert.True(t, actual.Equal(MustBetween(at(9, 5), at(17, 55))))
}
