package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPageRequest_Limit(t *testing.T) {
	t.Parallel()
	tests := []struct {
		max  int
		want int
	}{
		{0, DefaultPageSize},
		{-3, DefaultPageSize},
		{25, 25},
		{MaxPageSize + 1, MaxPageSize},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, PageRequest{MaxResults: tt.max}.Limit(), "max=%d", tt.max)
	}
}

func TestPageRequest_Walk(t *testing.T) {
	t.Parallel()

	first := PageRequest{MaxResults: 2}
	assert.Zero(t, first.Offset())

	token := first.Next(5)
	require.NotEmpty(t, token)
	second := PageRequest{MaxResults: 2, PageToken: token}
	require.NoError(t, second.Validate())
	assert.Equal(t, 2, second.Offset())

	third := PageRequest{MaxResults: 2, PageToken: second.Next(5)}
	assert.Equal(t, 4, third.Offset())
	assert.Empty(t, third.Next(5))
	assert.Empty(t, PageRequest{MaxResults: 2}.Next(2))
}

func TestPageRequest_ValidateRejectsForeignTokens(t *testing.T) {
	t.Parallel()
	for _, token := range []string{"%%%", "YWJj", "LTQ"} { // garbage, "abc", "-4"
		p := PageRequest{PageToken: token}
		var ve *ValidationError
		require.ErrorAs(t, p.Validate(), &ve, token)
		assert.Zero(t, p.Offset())
	}
	require.NoError(t, PageRequest{}.Validate())
}

func TestPrincipalName(t *testing.T) {
	t.Parallel()
	ctx := t.Context()
	assert.Empty(t, PrincipalName(ctx))

	ctx = WithPrincipal(ctx, Principal{Name: "alice@example.com", Subject: "user-1"})
	assert.Equal(t, "alice@example.com", PrincipalName(ctx))
	p, ok := PrincipalFromContext(ctx)
	require.True(t, ok)
	assert.Equal(t, "user-1", p.Subject)
}
