package repository

import (
	"fmt"
	"testing"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
)

func TestEscapeLike(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{in: "phone", want: "phone"},
		{in: "100%", want: `100\%`},
		{in: "a_b", want: `a\_b`},
		{in: `c:\dir`, want: `c:\\dir`},
		{in: "", want: ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, escapeLike(tt.in), tt.in)
	}
}

func TestIsUniqueViolation(t *testing.T) {
	dup := &pgconn.PgError{Code: uniqueViolation, ConstraintName: paymentResultKey}
	wrapped := fmt.Errorf("exec: %w", dup)

	assert.True(t, isUniqueViolation(dup, ""))
	assert.True(t, isUniqueViolation(wrapped, paymentResultKey))
	assert.False(t, isUniqueViolation(wrapped, reviewsPrimaryKey))
	assert.False(t, isUniqueViolation(&pgconn.PgError{Code: "23503"}, ""))
	assert.False(t, isUniqueViolation(errors.New("boom"), ""))
	assert.False(t, isUniqueViolation(nil, ""))
}
