package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilterMode(t *testing.T) {
	tests := []struct {
		in      string
		want    FilterMode
		wantErr bool
	}{
		{"all", FilterModeAll, false},
		{"active", FilterModeActive, false},
		{"archived", FilterModeArchived, false},
		{"", FilterModeAll, true},
		{"bogus", FilterModeAll, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseFilterMode(tt.in)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestFilterMode_Next(t *testing.T) {
	assert.Equal(t, FilterModeActive, FilterModeAll.Next())
	assert.Equal(t, FilterModeArchived, FilterModeActive.Next())
	assert.Equal(t, FilterModeAll, FilterModeArchived.Next())
}

func TestParsePageSize(t *testing.T) {
	tests := []struct {
		in      string
		want    PageSize
		wantErr bool
	}{
		{"25", PageSize25, false},
		{"50", PageSize50, false},
		{"100", PageSize100, false},
		{"all", PageSizeUnbounded, false},
		{"0", PageSize25, true},
		{"10", PageSize25, true},
		{"x", PageSize25, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePageSize(tt.in)
			if tt.wantErr {
				require.Error(t, err)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestPageSize_String(t *testing.T) {
	assert.Equal(t, "25", PageSize25.String())
	assert.Equal(t, "all", PageSizeUnbounded.String())
	assert.True(t, PageSizeUnbounded.Unbounded())
	assert.False(t, PageSize100.Unbounded())
}

func TestParseTheme(t *testing.T) {
	got, err := ParseTheme("light")
	require.NoError(t, err)
	assert.Equal(t, ThemeLight, got)

	got, err = ParseTheme("nope")
	require.Error(t, err)
	assert.Equal(t, ThemeDark, got)
}
