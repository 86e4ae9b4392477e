package sortindex

import (
	"math"
	"testing"
)

func TestCompareNumberAscDesc(t *testing.T) {
	asc := NewComparator(TypeNumber, Asc)
	cmp, err := asc.Compare(int32(3), int32(5))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if cmp >= 0 {
		t.Fatalf("expected 3 < 5, got %d", cmp)
	}

	desc := NewComparator(TypeNumber, Desc)
	cmp, err = desc.Compare(int32(3), int32(5))
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if cmp <= 0 {
		t.Fatalf("expected 3 sorts after 5 in desc order, got %d", cmp)
	}
}

func TestCompareNumberNaN(t *testing.T) {
	c := NewComparator(TypeNumber, Asc)
	nan := math.NaN()
	if cmp, _ := c.Compare(nan, nan); cmp != 0 {
		t.Fatalf("NaN vs NaN should tie, got %d", cmp)
	}
	if cmp, _ := c.Compare(nan, 1.0); cmp != -1 {
		t.Fatalf("NaN should sort before a real number, got %d", cmp)
	}
	if cmp, _ := c.Compare(1.0, nan); cmp != 1 {
		t.Fatalf("a real number should sort after NaN, got %d", cmp)
	}
}

func TestCompareStringCollation(t *testing.T) {
	c := NewComparator(TypeString, Asc)
	cmp, err := c.Compare("apple", "banana")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if cmp >= 0 {
		t.Fatalf("expected apple < banana, got %d", cmp)
	}
}

func TestCompareDateStrings(t *testing.T) {
	c := NewComparator(TypeDate, Asc)
	cmp, err := c.Compare("2024-01-01", "2024-06-01")
	if err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if cmp >= 0 {
		t.Fatalf("expected earlier date to sort first, got %d", cmp)
	}
}

func TestResolveTypeInfersOnce(t *testing.T) {
	c := NewComparator("", Asc)
	if _, err := c.Compare(int32(1), int32(2)); err != nil {
		t.Fatalf("Compare: %v", err)
	}
	if c.FieldType != TypeNumber {
		t.Fatalf("expected inferred type %q, got %q", TypeNumber, c.FieldType)
	}
	if _, err := c.Compare("not a number", int32(2)); err == nil {
		t.Fatalf("expected type mismatch once type is locked")
	}
}
