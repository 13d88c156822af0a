package httpserver

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolveRange(t *testing.T) {
	tests := []struct {
		header string
		size   int64
		want   byteRange
		err    error
	}{
		{"bytes=0-", 10, byteRange{0, 10, 10}, nil},
		{"bytes=5-", 10, byteRange{5, 5, 10}, nil},
		{"bytes=2-4", 10, byteRange{2, 3, 10}, nil},
		{"bytes=9-9", 10, byteRange{9, 1, 10}, nil},
		{"bytes=3-999", 10, byteRange{3, 7, 10}, nil},
		{"Bytes=1-1", 10, byteRange{1, 1, 10}, nil},
		{"bytes= 1 - 2 ", 10, byteRange{1, 2, 10}, nil},
		{"bytes=0-4,", 10, byteRange{0, 5, 10}, nil},
		{"bytes=10-", 10, byteRange{}, errUnsatisfiable},
		{"bytes=11-20", 10, byteRange{}, errUnsatisfiable},
		{"bytes=0-4,6-9", 10, byteRange{}, errMultiRange},
		{"items=0-4", 10, byteRange{}, errRangeUnit},
		{"bytes=-5", 10, byteRange{}, errRangeStart},
		{"bytes=5-2", 10, byteRange{}, errMalformedRange},
		{"bytes=a-b", 10, byteRange{}, errMalformedRange},
		{"bytes=+1-2", 10, byteRange{}, errMalformedRange},
		{"bytes=", 10, byteRange{}, errMalformedRange},
		{"bytes=-", 10, byteRange{}, errMalformedRange},
		{"bytes=5", 10, byteRange{}, errMalformedRange},
		{"0-5", 10, byteRange{}, errMalformedRange},
		{"garbage", 10, byteRange{}, errMalformedRange},
	}
	for _, tt := range tests {
		got, err := resolveRange(tt.header, tt.size)
		if tt.err != nil {
			assert.ErrorIs(t, err, tt.err, "resolveRange(%q)", tt.header)
			continue
		}
		require.NoError(t, err, "resolveRange(%q)", tt.header)
		assert.Equal(t, tt.want, got, "resolveRange(%q)", tt.header)
	}
}

func TestContentRange(t *testing.T) {
	assert.Equal(t, "bytes 5-9/10", byteRange{offset: 5, length: 5, total: 10}.contentRange())
	assert.Equal(t, "bytes 0-0/1", byteRange{offset: 0, length: 1, total: 1}.contentRange())
}
