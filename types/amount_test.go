package types

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAmount_UnmarshalJSON(t *testing.T) {
	var testCases = []struct {
		in     string
		result string
		errMsg string
	}{
		{in: `"0"`, result: "0"},
		{in: `100`, result: "100"},
		{in: `"999999999999999999999"`, result: "999999999999999999999"},
		{in: `"340282366920938463463374607431768211455"`, result: "340282366920938463463374607431768211455"},
		{in: `1.5`, errMsg: "amount must be an integer"},
		{in: `1e3`, errMsg: "amount must be an integer"},
		{in: `"-1"`, errMsg: "amount must not be negative"},
		{in: `null`, errMsg: "amount must not be null"},
		{in: `"abc"`, errMsg: `invalid amount "abc"`},
		{in: `""`, errMsg: "amount is empty"},
	}

	for _, tc := range testCases {
		t.Run(tc.in, func(t *testing.T) {
			var a Amount
			err := json.Unmarshal([]byte(tc.in), &a)
			if tc.errMsg != "" {
				require.ErrorContains(t, err, tc.errMsg)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.result, a.String())
		})
	}
}

func TestAmount_MarshalJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		A Amount `json:"a"`
	}{A: Pow10(3, 22)})
	require.NoError(t, err)
	require.JSONEq(t, `{"a":"30000000000000000000000"}`, string(b))
}

func TestAmount_Arithmetic(t *testing.T) {
	a := NewAmount(10)
	b := NewAmount(3)
	sum, err := a.Add(b)
	require.NoError(t, err)
	require.Equal(t, "13", sum.String())

	diff, err := a.Sub(b)
	require.NoError(t, err)
	require.Equal(t, "7", diff.String())

	_, err = b.Sub(a)
	require.ErrorContains(t, err, "underflows")

	require.Equal(t, 1, a.Cmp(b))
	require.True(t, Amount{}.IsZero())
	require.False(t, NewAmount(1).IsZero())
}

func TestGas_JSON(t *testing.T) {
	g := Gas(300_000_000_000_000)
	b, err := json.Marshal(g)
	require.NoError(t, err)
	require.Equal(t, `"300000000000000"`, string(b))

	var g2 Gas
	require.NoError(t, json.Unmarshal(b, &g2))
	require.Equal(t, g, g2)
	require.NoError(t, json.Unmarshal([]byte("42"), &g2))
	require.EqualValues(t, 42, g2)
}

func TestAppchain_HasStakeFrom(t *testing.T) {
	ac := &Appchain{
		FounderID: "founder.testnet",
		StakeRecords: []StakeRecord{
			{Validator: Validator{AccountID: "bob.testnet"}},
		},
	}
	require.True(t, ac.HasStakeFrom("bob.testnet"))
	require.False(t, ac.HasStakeFrom("alice.testnet"))
	require.False(t, ac.HasStakeFrom(""))
	require.True(t, ac.IsFoundedBy("founder.testnet"))
	require.False(t, ac.IsFoundedBy(""))

	var nilAC *Appchain
	require.False(t, nilAC.HasStakeFrom("bob.testnet"))
}

func TestParseBondMode(t *testing.T) {
	m, err := ParseBondMode("token")
	require.NoError(t, err)
	require.Equal(t, BondModeToken, m)
	m, err = ParseBondMode("native")
	require.NoError(t, err)
	require.Equal(t, BondModeNative, m)
	_, err = ParseBondMode("Token")
	require.EqualError(t, err, `unknown bond mode "Token", expected "token" or "native"`)
}
