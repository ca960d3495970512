package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDialAddr(t *testing.T) {
	t.Parallel()

	tests := []struct {
		listen string
		want   string
	}{
		{":8080", "localhost:8080"},
		{"0.0.0.0:9090", "localhost:9090"},
		{"[::]:8080", "localhost:8080"},
		{"127.0.0.1:8080", "127.0.0.1:8080"},
		{"scheduler.internal:80", "scheduler.internal:80"},
		{"no-port", "no-port"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, dialAddr(tt.listen), tt.listen)
	}
}
