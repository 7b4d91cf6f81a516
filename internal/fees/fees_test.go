package fees_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steffenmax/arbbot/internal/domain"
	"github.com/steffenmax/arbbot/internal/fees"
)

func kalshiSchedule() domain.FeeSchedule {
	return domain.FeeSchedule{
		Venue:        domain.VenueKalshi,
		Kind:         domain.FeeKindQuadratic,
		TakerRate:    0.07,
		MakerRate:    0.0175,
		RoundingUnit: 0.01,
	}
}

func TestQuadratic_KnownValue(t *testing.T) {
	m := fees.NewQuadratic(kalshiSchedule())

	fee, err := m.Fee(100, 0.24, domain.LiquidityTaker)
	require.NoError(t, err)
	// 0.07 × 100 × 0.24 × 0.76 = 1.2768 → rounded up to 1.28
	assert.Equal(t, 1.28, fee)
}

func TestQuadratic_MakerRate(t *testing.T) {
	m := fees.NewQuadratic(kalshiSchedule())

	fee, err := m.Fee(100, 0.5, domain.LiquidityMaker)
	require.NoError(t, err)
	// 0.0175 × 100 × 0.25 = 0.4375 → 0.44
	assert.Equal(t, 0.44, fee)
}

func TestQuadratic_ZeroAtCertainPrices(t *testing.T) {
	m := fees.NewQuadratic(kalshiSchedule())

	for _, q := range []float64{1, 10, 250, 1000} {
		at0, err := m.Fee(q, 0, domain.LiquidityTaker)
		require.NoError(t, err)
		at1, err := m.Fee(q, 1, domain.LiquidityTaker)
		require.NoError(t, err)
		assert.Zero(t, at0, "q=%v p=0", q)
		assert.Zero(t, at1, "q=%v p=1", q)
	}
}

func TestQuadratic_RoundsUpToWholeCents(t *testing.T) {
	m := fees.NewQuadratic(kalshiSchedule())

	for q := 1.0; q <= 300; q += 7 {
		for p := 0.01; p < 1; p += 0.03 {
			fee, err := m.Fee(q, p, domain.LiquidityTaker)
			require.NoError(t, err)

			raw := 0.07 * q * p * (1 - p)
			assert.GreaterOrEqual(t, fee+1e-9, raw, "q=%v p=%v", q, p)
			assert.Less(t, fee-raw, 0.01+1e-9, "q=%v p=%v", q, p)

			cents := fee * 100
			assert.InDelta(t, math.Round(cents), cents, 1e-6, "q=%v p=%v fee=%v", q, p, fee)
			assert.GreaterOrEqual(t, fee, 0.0)
		}
	}
}

func TestQuadratic_NonPositiveQuantity(t *testing.T) {
	m := fees.NewQuadratic(kalshiSchedule())

	for _, q := range []float64{0, -5} {
		fee, err := m.Fee(q, 0.4, domain.LiquidityTaker)
		require.NoError(t, err)
		assert.Zero(t, fee)
	}
}

func TestFee_RejectsPriceOutsideUnitInterval(t *testing.T) {
	models := []fees.Model{
		fees.NewQuadratic(kalshiSchedule()),
		fees.NewNotional(domain.FeeSchedule{Venue: domain.VenuePolymarket, TakerRate: 0.02}),
	}
	for _, m := range models {
		for _, p := range []float64{-0.01, 1.01, math.NaN()} {
			_, err := m.Fee(10, p, domain.LiquidityTaker)
			assert.ErrorIs(t, err, domain.ErrPriceOutOfRange, "%s p=%v", m.Venue(), p)
		}
	}
}

func TestFee_RequiresLiquidityFlag(t *testing.T) {
	m := fees.NewQuadratic(kalshiSchedule())

	_, err := m.Fee(10, 0.4, domain.LiquidityUnspecified)
	assert.ErrorIs(t, err, domain.ErrLiquidityUnspecified)
}

func TestNotional_RateAndFixedCost(t *testing.T) {
	m := fees.NewNotional(domain.FeeSchedule{
		Venue:     domain.VenuePolymarket,
		TakerRate: 0.02,
		FixedCost: 0.05,
	})

	fee, err := m.Fee(100, 0.31, domain.LiquidityTaker)
	require.NoError(t, err)
	assert.InDelta(t, 0.02*100*0.31+0.05, fee, 1e-9)

	zero, err := m.Fee(0, 0.31, domain.LiquidityTaker)
	require.NoError(t, err)
	assert.Zero(t, zero)
}

func TestNotional_ZeroRate(t *testing.T) {
	m := fees.NewNotional(domain.FeeSchedule{Venue: domain.VenuePolymarket})

	fee, err := m.Fee(500, 0.6, domain.LiquidityTaker)
	require.NoError(t, err)
	assert.Zero(t, fee)
}

func TestNew_FromSchedule(t *testing.T) {
	m, err := fees.New(kalshiSchedule())
	require.NoError(t, err)
	assert.IsType(t, fees.Quadratic{}, m)
	assert.Equal(t, domain.VenueKalshi, m.Venue())

	_, err = fees.New(domain.FeeSchedule{Venue: domain.VenueKalshi, Kind: "flat"})
	assert.Error(t, err)

	bad := kalshiSchedule()
	bad.FixedCost = 0.1
	_, err = fees.New(bad)
	assert.Error(t, err)
}
