package httpclient

import (
	"fmt"
	"strconv"
	"strings"
)

// statusCodeRange is an inclusive range of HTTP status codes.
type statusCodeRange struct {
	Min int
	Max int
}

func (r statusCodeRange) contains(code int) bool {
	return code >= r.Min && code <= r.Max
}

// StatusCodeSet is a set of HTTP status codes, held as individual codes
// plus ranges.
//
// Accepted string forms:
//   - "500" single code
//   - "429,500" multiple codes
//   - "500-599" range (inclusive)
//   - "429,500-599" mixed
type StatusCodeSet struct {
	codes  map[int]struct{}
	ranges []statusCodeRange
}

// NewStatusCodeSet creates an empty StatusCodeSet.
func NewStatusCodeSet() *StatusCodeSet {
	return &StatusCodeSet{codes: make(map[int]struct{})}
}

// ParseStatusCodes parses a spec string like "429,500-599" into a
// StatusCodeSet. An empty string yields a nil set.
func ParseStatusCodes(s string) (*StatusCodeSet, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}

	set := NewStatusCodeSet()
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			min, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid range start %q: %w", bounds[0], err)
			}
			max, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid range end %q: %w", bounds[1], err)
			}
			if min > max {
				return nil, fmt.Errorf("invalid range %d-%d: min > max", min, max)
			}
			if min < 100 || max > 599 {
				return nil, fmt.Errorf("invalid status code range %d-%d: must be 100-599", min, max)
			}
			set.ranges = append(set.ranges, statusCodeRange{Min: min, Max: max})
			continue
		}

		code, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid status code %q: %w", part, err)
		}
		if code < 100 || code > 599 {
			return nil, fmt.Errorf("invalid status code %d: must be 100-599", code)
		}
		set.codes[code] = struct{}{}
	}

	if set.IsEmpty() {
		return nil, nil
	}
	return set, nil
}

// MustParseStatusCodes is like ParseStatusCodes but panics on error.
func MustParseStatusCodes(s string) *StatusCodeSet {
	set, err := ParseStatusCodes(s)
	if err != nil {
		panic(err)
	}
	return set
}

// Add adds an individual status code to the set.
func (s *StatusCodeSet) Add(code int) {
	if s.codes == nil {
		s.codes = make(map[int]struct{})
	}
	s.codes[code] = struct{}{}
}

// AddRange adds an inclusive range of status codes to the set.
func (s *StatusCodeSet) AddRange(min, max int) {
	s.ranges = append(s.ranges, statusCodeRange{Min: min, Max: max})
}

// Contains returns true if the status code is in the set.
func (s *StatusCodeSet) Contains(code int) bool {
	if s == nil {
		return false
	}
	if _, ok := s.codes[code]; ok {
		return true
	}
	for _, r := range s.ranges {
		if r.contains(code) {
			return true
		}
	}
	return false
}

// IsEmpty returns true if the set holds no codes or ranges.
func (s *StatusCodeSet) IsEmpty() bool {
	return s == nil || (len(s.codes) == 0 && len(s.ranges) == 0)
}

// String returns the set in the string form ParseStatusCodes accepts.
func (s *StatusCodeSet) String() string {
	if s.IsEmpty() {
		return ""
	}
	var parts []string
	for _, r := range s.ranges {
		if r.Min == r.Max {
			parts = append(parts, strconv.Itoa(r.Min))
		} else {
			parts = append(parts, fmt.Sprintf("%d-%d", r.Min, r.Max))
		}
	}
	for code := range s.codes {
		parts = append(parts, strconv.Itoa(code))
	}
	return strings.Join(parts, ",")
}

// DefaultRetryStatuses returns the statuses retried when the caller does
// not configure a set: 429 plus every 5xx. Transient server-side failures
// are worth another attempt, whatever the exact 5xx variety.
func DefaultRetryStatuses() *StatusCodeSet {
	set := NewStatusCodeSet()
	set.Add(429)
	set.AddRange(500, 599)
	return set
}
