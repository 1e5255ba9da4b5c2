package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVector_Add(t *testing.T) {
	tests := []struct {
		name string
		a, b Vector
		want Vector
	}{
		{"zero", Vector{}, Vector{}, Vector{}},
		{"forward offset", NewVector(100, 60, 200), Forward.Scale(500), NewVector(100, 60, 700)},
		{"negative", NewVector(-10, 5, 3), NewVector(10, -5, -3), Vector{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Add(tt.b))
		})
	}
}

func TestVector_WithY(t *testing.T) {
	v := NewVector(1, 2, 3)
	got := v.WithY(60)

	assert.Equal(t, NewVector(1, 60, 3), got)
	assert.Equal(t, 2.0, v.Y, "original must stay unchanged")
}

func TestVector_Distances(t *testing.T) {
	a := NewVector(0, 0, 0)
	b := NewVector(3, 100, 4)

	assert.Equal(t, 5.0, a.Distance2D(b))
	assert.Equal(t, 9.0+10000.0+16.0, a.DistanceSquared(b))
}
