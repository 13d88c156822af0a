package httpserver

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	errMalformedRange = errors.New("malformed Range header")
	errMultiRange     = errors.New("multiple ranges are not supported")
	errRangeUnit      = errors.New("range unit must be bytes")
	errRangeStart     = errors.New("range start is required")
	errUnsatisfiable  = errors.New("range start beyond end of file")
)

// byteRange is a contiguous slice of a file: offset < total, length >= 1.
type byteRange struct {
	offset int64
	length int64
	total  int64
}

func (b byteRange) contentRange() string {
	return fmt.Sprintf("bytes %d-%d/%d", b.offset, b.offset+b.length-1, b.total)
}

// rangeSpec is one "first-last" item of a Range header; -1 marks an absent bound.
type rangeSpec struct {
	first int64
	last  int64
}

// parseRangeHeader splits "unit=a-b, c-d" into its unit and specs. Anything
// that does not follow that shape is errMalformedRange.
func parseRangeHeader(v string) (string, []rangeSpec, error) {
	unit, set, ok := strings.Cut(v, "=")
	unit = strings.TrimSpace(unit)
	if !ok || unit == "" || strings.ContainsAny(unit, " \t,") {
		return "", nil, errMalformedRange
	}
	var specs []rangeSpec
	for _, part := range strings.Split(set, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		first, last, ok := strings.Cut(part, "-")
		if !ok {
			return "", nil, errMalformedRange
		}
		first, last = strings.TrimSpace(first), strings.TrimSpace(last)
		if first == "" && last == "" {
			return "", nil, errMalformedRange
		}
		s := rangeSpec{first: -1, last: -1}
		var err error
		if first != "" {
			if s.first, err = parseDigits(first); err != nil {
				return "", nil, err
			}
		}
		if last != "" {
			if s.last, err = parseDigits(last); err != nil {
				return "", nil, err
			}
		}
		if s.first >= 0 && s.last >= 0 && s.last < s.first {
			return "", nil, errMalformedRange
		}
		specs = append(specs, s)
	}
	if len(specs) == 0 {
		return "", nil, errMalformedRange
	}
	return unit, specs, nil
}

func parseDigits(s string) (int64, error) {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return 0, errMalformedRange
		}
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, errMalformedRange
	}
	return n, nil
}

// resolveRange turns a Range header into the slice of a size-byte file to
// serve. Only a single "bytes=first-[last]" range is accepted; an absent or
// too large last is clamped to the end of the file.
func resolveRange(header string, size int64) (byteRange, error) {
	unit, specs, err := parseRangeHeader(header)
	if err != nil {
		return byteRange{}, err
	}
	if len(specs) != 1 {
		return byteRange{}, errMultiRange
	}
	if !strings.EqualFold(unit, "bytes") {
		return byteRange{}, errRangeUnit
	}
	s := specs[0]
	if s.first < 0 {
		return byteRange{}, errRangeStart
	}
	if s.first >= size {
		return byteRange{}, errUnsatisfiable
	}
	length := size - s.first
	if s.last >= 0 && s.last < size {
		length = s.last - s.first + 1
	}
	return byteRange{offset: s.first, length: length, total: size}, nil
}
