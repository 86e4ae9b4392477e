package sortindex

import (
	"fmt"
	"math"
	"time"

	"github.com/javanhut/bdb/internal/bdberr"
	"golang.org/x/text/collate"
	"golang.org/x/text/language"
)

// FieldType names the three value kinds a sort index's comparator can
// be configured for, or left empty to infer from the first value seen.
type FieldType string

const (
	TypeDate   FieldType = "date"
	TypeString FieldType = "string"
	TypeNumber FieldType = "number"
)

// Direction is the sort direction an index was created with.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Comparator orders two indexed values under a field's configured (or
// inferred) type and direction. All callers treat Compare(a,b) < 0 as
// "a precedes b", regardless of direction — the negation for desc
// happens inside Compare.
type Comparator struct {
	FieldType FieldType // empty until fixed, either explicitly or by inference
	Direction Direction

	collator *collate.Collator
}

// NewComparator builds a comparator for the given (possibly empty)
// field type and direction.
func NewComparator(fieldType FieldType, direction Direction) *Comparator {
	if direction == "" {
		direction = Asc
	}
	return &Comparator{
		FieldType: fieldType,
		Direction: direction,
		collator:  collate.New(language.Und, collate.Force),
	}
}

// classify infers a FieldType from a single observed value.
func classify(v any) (FieldType, error) {
	switch t := v.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return TypeNumber, nil
	case string:
		if _, err := parseDateString(t); err == nil {
			return TypeDate, nil
		}
		return TypeString, nil
	case time.Time:
		return TypeDate, nil
	default:
		return "", fmt.Errorf("%w: cannot classify value of type %T", bdberr.ErrTypeMismatch, v)
	}
}

// resolveType returns the comparator's fixed type if set, otherwise
// infers and locks one in from the first non-nil of a, b.
func (c *Comparator) resolveType(a, b any) (FieldType, error) {
	if c.FieldType != "" {
		return c.FieldType, nil
	}
	sample := a
	if sample == nil {
		sample = b
	}
	if sample == nil {
		return "", fmt.Errorf("%w: cannot infer type from two nil values", bdberr.ErrTypeMismatch)
	}
	t, err := classify(sample)
	if err != nil {
		return "", err
	}
	c.FieldType = t
	return t, nil
}

var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

func parseDateString(s string) (time.Time, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("sortindex: %q is not a recognized date", s)
}

func toFloat(v any) (float64, bool) {
	switch t := v.(type) {
	case float64:
		return t, true
	case float32:
		return float64(t), true
	case int:
		return float64(t), true
	case int8:
		return float64(t), true
	case int16:
		return float64(t), true
	case int32:
		return float64(t), true
	case int64:
		return float64(t), true
	case uint:
		return float64(t), true
	case uint8:
		return float64(t), true
	case uint16:
		return float64(t), true
	case uint32:
		return float64(t), true
	case uint64:
		return float64(t), true
	default:
		return 0, false
	}
}

func toTime(v any) (time.Time, bool) {
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		parsed, err := parseDateString(t)
		if err != nil {
			return time.Time{}, false
		}
		return parsed, true
	default:
		return time.Time{}, false
	}
}

func toComparableString(v any) string {
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprintf("%v", v)
}

func compareFloat(a, b float64) int {
	aNaN, bNaN := math.IsNaN(a), math.IsNaN(b)
	switch {
	case aNaN && bNaN:
		return 0
	case aNaN:
		return -1
	case bNaN:
		return 1
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}

// Compare reports whether a precedes (-1), ties with (0), or follows
// (1) b, under the comparator's type and direction. Returns
// ErrTypeMismatch if the values can't be classified, or classify to
// incompatible types when FieldType is fixed.
func (c *Comparator) Compare(a, b any) (int, error) {
	fieldType, err := c.resolveType(a, b)
	if err != nil {
		return 0, err
	}

	var cmp int
	switch fieldType {
	case TypeNumber:
		af, aok := numberOrNaN(a)
		bf, bok := numberOrNaN(b)
		if !aok || !bok {
			return 0, bdberr.ErrTypeMismatch
		}
		cmp = compareFloat(af, bf)
	case TypeDate:
		at, aok := toTime(a)
		bt, bok := toTime(b)
		if !aok || !bok {
			return 0, bdberr.ErrTypeMismatch
		}
		cmp = compareInt64(at.UnixNano(), bt.UnixNano())
	case TypeString, "":
		cmp = c.collator.CompareString(toComparableString(a), toComparableString(b))
	default:
		return 0, fmt.Errorf("%w: unknown field type %q", bdberr.ErrTypeMismatch, fieldType)
	}

	if c.Direction == Desc {
		cmp = -cmp
	}
	return cmp, nil
}

func numberOrNaN(v any) (float64, bool) {
	if v == nil {
		return math.NaN(), true
	}
	return toFloat(v)
}

func compareInt64(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	default:
		return 0
	}
}
