package coin

import (
	"math"
	"math/big"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/crown-blockchain/crownd/errors"
)

func TestParseCoin(t *testing.T) {
	tests := []struct {
		in   string
		want Coin
	}{
		{"0.01", Cent},
		{"1E-2", Cent},
		{"1.01", OneCoin + Cent},
		{"-1", -OneCoin},
		{"0.00000001", Satoshi},
		{"0.000000010", Satoshi},
		{"0", Zero},
		{"21000000", MaxMoney},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseCoin(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseCoinRejectsFractionalSatoshis(t *testing.T) {
	_, err := ParseCoin("2E-20")
	require.Error(t, err)

	_, err = ParseCoin("0.000000011")
	require.Error(t, err)
}

func TestParseCoinInexact(t *testing.T) {
	got, err := ParseCoinInexact("0.00000001")
	require.NoError(t, err)
	assert.Equal(t, Satoshi, got)

	got, err = ParseCoinInexact("0.000000011")
	require.NoError(t, err)
	assert.Equal(t, Satoshi, got)

	got, err = ParseCoinInexact("-0.000000019")
	require.NoError(t, err)
	assert.Equal(t, NegativeSatoshi, got)
}

func TestParseCoinBoundaries(t *testing.T) {
	got, err := ParseCoin("92233720368.54775807")
	require.NoError(t, err)
	assert.Equal(t, Coin(math.MaxInt64), got)

	got, err = ParseCoin("-92233720368.54775808")
	require.NoError(t, err)
	assert.Equal(t, Coin(math.MinInt64), got)

	_, err = ParseCoin("92233720368.54775808")
	require.Error(t, err)
	require.True(t, errors.Is(err, errors.ErrOverflow))

	_, err = ParseCoin("-92233720368.54775809")
	require.Error(t, err)
}

func TestNewCoin(t *testing.T) {
	got, err := NewCoin(0, 1)
	require.NoError(t, err)
	assert.Equal(t, Cent, got)

	got, err = NewCoin(21_000_000, 0)
	require.NoError(t, err)
	assert.Equal(t, MaxMoney, got)

	_, err = NewCoin(1, -1)
	require.Error(t, err)

	_, err = NewCoin(-1, 1)
	require.Error(t, err)

	_, err = NewCoin(0, 100)
	require.Error(t, err)
}

func TestAddOverflow(t *testing.T) {
	got, err := Coin(1).Add(2)
	require.NoError(t, err)
	assert.Equal(t, Coin(3), got)

	_, err = Coin(math.MaxInt64).Add(1)
	require.True(t, errors.Is(err, errors.ErrOverflow))

	_, err = Coin(math.MinInt64).Add(-1)
	require.True(t, errors.Is(err, errors.ErrOverflow))
}

func TestSubOverflow(t *testing.T) {
	got, err := Coin(3).Sub(2)
	require.NoError(t, err)
	assert.Equal(t, Coin(1), got)

	_, err = Coin(math.MinInt64).Sub(1)
	require.True(t, errors.Is(err, errors.ErrOverflow))

	_, err = Coin(math.MaxInt64).Sub(-1)
	require.True(t, errors.Is(err, errors.ErrOverflow))
}

func TestMulOverflow(t *testing.T) {
	got, err := OneCoin.Mul(21_000_000)
	require.NoError(t, err)
	assert.Equal(t, MaxMoney, got)

	_, err = Coin(math.MaxInt64).Mul(2)
	require.True(t, errors.Is(err, errors.ErrOverflow))

	_, err = Coin(math.MinInt64).Mul(-1)
	require.True(t, errors.Is(err, errors.ErrOverflow))
}

func TestDiv(t *testing.T) {
	got, err := OneCoin.Div(4)
	require.NoError(t, err)
	assert.Equal(t, Coin(25_000_000), got)

	n, err := OneCoin.DivideBy(Cent)
	require.NoError(t, err)
	assert.Equal(t, int64(100), n)

	_, err = OneCoin.Div(0)
	require.Error(t, err)
}

func TestDecimalRoundTrip(t *testing.T) {
	for _, c := range []Coin{Zero, Satoshi, NegativeSatoshi, Cent, OneCoin, MaxMoney, Coin(math.MaxInt64), Coin(math.MinInt64)} {
		got, err := FromDecimal(c.ToDecimal())
		require.NoError(t, err)
		assert.Equal(t, c, got)
	}
}

func TestFromDecimalBoundaries(t *testing.T) {
	d, ok := new(big.Rat).SetString("-92233720368.54775808")
	require.True(t, ok)

	got, err := FromDecimal(d)
	require.NoError(t, err)
	assert.Equal(t, Coin(math.MinInt64), got)

	d, ok = new(big.Rat).SetString("92233720368.54775808")
	require.True(t, ok)

	_, err = FromDecimal(d)
	require.Error(t, err)

	d, ok = new(big.Rat).SetString("0.000000001")
	require.True(t, ok)

	_, err = FromDecimal(d)
	require.Error(t, err)
}

func TestString(t *testing.T) {
	tests := []struct {
		in   Coin
		want string
	}{
		{Zero, "0"},
		{Satoshi, "0.00000001"},
		{NegativeSatoshi, "-0.00000001"},
		{Cent, "0.01"},
		{OneCoin, "1"},
		{OneCoin + Cent, "1.01"},
		{MaxMoney, "21000000"},
		{Coin(math.MinInt64), "-92233720368.54775808"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, tt.in.String())
	}
}

func TestSignHelpers(t *testing.T) {
	assert.True(t, Satoshi.IsPositive())
	assert.True(t, NegativeSatoshi.IsNegative())
	assert.True(t, Zero.IsZero())
	assert.Equal(t, Satoshi, NegativeSatoshi.Abs())
	assert.Equal(t, NegativeSatoshi, Satoshi.Negate())

	assert.True(t, MaxMoney.InRange())
	assert.False(t, (MaxMoney + 1).InRange())
	assert.False(t, NegativeSatoshi.InRange())
}
