package util

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// MinLabel and MaxLabel bound the VLAN label space a trunk can draw from
// (single 12-bit VLAN tag; double-tagged/QinQ labels are represented the
// same way by the caller using a wider range).
const (
	MinLabel = 1
	MaxLabel = 4094
)

// ExpandRange expands a range specification into individual sorted, deduplicated
// values. Supports:
//   - "1-5"     -> [1 2 3 4 5]
//   - "1,3,5"   -> [1 3 5]
//   - "1-3,5,7-9" -> [1 2 3 5 7 8 9]
func ExpandRange(spec string) ([]int, error) {
	if spec == "" {
		return nil, nil
	}

	var result []int
	for _, part := range strings.Split(spec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		if strings.Contains(part, "-") {
			bounds := strings.SplitN(part, "-", 2)
			if len(bounds) != 2 {
				return nil, fmt.Errorf("invalid range format: %s", part)
			}
			start, err := strconv.Atoi(strings.TrimSpace(bounds[0]))
			if err != nil {
				return nil, fmt.Errorf("invalid start value in range %s: %w", part, err)
			}
			end, err := strconv.Atoi(strings.TrimSpace(bounds[1]))
			if err != nil {
				return nil, fmt.Errorf("invalid end value in range %s: %w", part, err)
			}
			if start > end {
				return nil, fmt.Errorf("start value %d greater than end value %d in range %s", start, end, part)
			}
			for i := start; i <= end; i++ {
				result = append(result, i)
			}
			continue
		}

		val, err := strconv.Atoi(part)
		if err != nil {
			return nil, fmt.Errorf("invalid value: %s", part)
		}
		result = append(result, val)
	}

	sort.Ints(result)
	return dedupInts(result), nil
}

// CompactRange renders a list of integers back into range notation, the
// inverse of ExpandRange: [1 2 3 5 7 8 9] -> "1-3,5,7-9".
func CompactRange(values []int) string {
	if len(values) == 0 {
		return ""
	}

	sorted := make([]int, len(values))
	copy(sorted, values)
	sort.Ints(sorted)
	sorted = dedupInts(sorted)

	var parts []string
	start, end := sorted[0], sorted[0]
	for _, v := range sorted[1:] {
		if v == end+1 {
			end = v
			continue
		}
		parts = append(parts, formatRange(start, end))
		start, end = v, v
	}
	parts = append(parts, formatRange(start, end))
	return strings.Join(parts, ",")
}

func formatRange(start, end int) string {
	if start == end {
		return strconv.Itoa(start)
	}
	return fmt.Sprintf("%d-%d", start, end)
}

func dedupInts(sorted []int) []int {
	if len(sorted) == 0 {
		return sorted
	}
	result := []int{sorted[0]}
	for _, v := range sorted[1:] {
		if v != result[len(result)-1] {
			result = append(result, v)
		}
	}
	return result
}

// ExpandLabelRange expands a range specification and validates that every
// value falls within [MinLabel, MaxLabel], as required of a trunk's
// operator-declared label range (spec §4.4 "provide_labels(range)").
func ExpandLabelRange(spec string) ([]int, error) {
	labels, err := ExpandRange(spec)
	if err != nil {
		return nil, err
	}
	for _, l := range labels {
		if l < MinLabel || l > MaxLabel {
			return nil, fmt.Errorf("label %d out of range [%d, %d]", l, MinLabel, MaxLabel)
		}
	}
	return labels, nil
}
