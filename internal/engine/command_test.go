package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lox/roomwager/internal/outcome"
)

func TestParseCommand(t *testing.T) {
	t.Parallel()
	tests := []struct {
		text    string
		want    request
		wantErr error
	}{
		{text: "good game everyone", want: request{}},
		{text: "start", want: request{action: actStart, variant: Elimination}},
		{text: "!START 250", want: request{action: actStart, variant: Elimination, stake: 250, hasStake: true}},
		{text: "/start baccarat", want: request{action: actStart, variant: Comparison}},
		{text: "start 40 comparison", want: request{action: actStart, variant: Comparison, stake: 40, hasStake: true}},
		{text: "start poker", wantErr: ErrUnknownCommand},
		{text: "start 0", wantErr: ErrStakeOutOfRange},
		{text: "Bet Banker 75", want: request{action: actBet, category: outcome.Banker, stake: 75, hasStake: true}},
		{text: "bet t 10", want: request{action: actBet, category: outcome.Tie, stake: 10, hasStake: true}},
		{text: "bet nobody 10", wantErr: ErrUnknownCategory},
		{text: "bet player ten", wantErr: ErrStakeOutOfRange},
		{text: "  draw  ", want: request{action: actDraw}},
		{text: "!dance", wantErr: ErrUnknownCommand},
		{text: "dance", want: request{}},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, err := parseCommand(tt.text, Elimination)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseVariant(t *testing.T) {
	t.Parallel()
	for _, s := range []string{"lowcard", "Elimination", "low"} {
		v, ok := ParseVariant(s)
		assert.True(t, ok, s)
		assert.Equal(t, Elimination, v)
	}
	v, ok := ParseVariant("bacc")
	assert.True(t, ok)
	assert.Equal(t, Comparison, v)

	_, ok = ParseVariant("roulette")
	assert.False(t, ok)
}
