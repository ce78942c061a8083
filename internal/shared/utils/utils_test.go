package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("secret123")
	require.NoError(t, err)
	assert.NotEqual(t, "secret123", hash)

	assert.True(t, CheckPassword("secret123", hash))
	assert.False(t, CheckPassword("wrong", hash))
}

func TestGenerateShareToken(t *testing.T) {
	t1 := GenerateShareToken()
	t2 := GenerateShareToken()

	assert.NotEmpty(t, t1)
	assert.NotEqual(t, t1, t2)
}

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		bytes int64
		want  string
	}{
		{0, "0 B"},
		{512, "512 B"},
		{1024, "1.00 KB"},
		{1536, "1.50 KB"},
		{1048576, "1.00 MB"},
		{10737418240, "10.00 GB"},
		{1099511627776, "1.00 TB"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, FormatBytes(tt.bytes))
	}
}

func TestParseBytes(t *testing.T) {
	tests := []struct {
		input string
		want  int64
	}{
		{"1024", 1024},
		{"10GB", 10737418240},
		{"1.5 TB", 1649267441664},
		{"512MB", 536870912},
		{"2kb", 2048},
		{"100 B", 100},
	}

	for _, tt := range tests {
		got, err := ParseBytes(tt.input)
		require.NoError(t, err, "input: %s", tt.input)
		assert.Equal(t, tt.want, got, "input: %s", tt.input)
	}
}

func TestParseBytesRejectsInvalid(t *testing.T) {
	for _, input := range []string{"", "abc", "-1GB", "GB", "10XB"} {
		_, err := ParseBytes(input)
		assert.Error(t, err, "input: %s", input)
	}
}

func TestParsePagination(t *testing.T) {
	page, size := ParsePagination("", "")
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, size)

	page, size = ParsePagination("3", "50")
	assert.Equal(t, 3, page)
	assert.Equal(t, 50, size)

	// 非法值回退默认
	page, size = ParsePagination("-1", "500")
	assert.Equal(t, 1, page)
	assert.Equal(t, 20, size)
}
