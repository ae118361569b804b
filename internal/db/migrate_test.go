package db

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"postgres://u:p@localhost:5432/pos?sslmode=disable", "pgx5://u:p@localhost:5432/pos?sslmode=disable"},
		{"postgresql://u@db/pos", "pgx5://u@db/pos"},
		{"pgx5://u@db/pos", "pgx5://u@db/pos"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MigrateURL(tt.in))
	}
}
