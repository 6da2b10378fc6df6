package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidPersonName(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Alice", true},
		{"Mary Ann", true},
		{"O'Brien", true},
		{"Jean-Luc", true},
		{"Zoë", true},
		{"", false},
		{"B0b", false},
		{" Alice", false},
		{"Alice ", false},
		{"Mary  Ann", false},
		{"<script>", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, validPersonName(tt.in), "validPersonName(%q)", tt.in)
	}
}

func TestStrongPassword(t *testing.T) {
	tests := []struct {
		in   string
		want bool
	}{
		{"Passw0rd!", true},
		{"aB#aaaaa", true},
		{"aB#aaaa", false},
		{"aB#aaaaaaaaaaaaaaaaaa", false},
		{"password!", false},
		{"PASSWORD!", false},
		{"Password1", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, strongPassword(tt.in), "strongPassword(%q)", tt.in)
	}
}
