package validate

import (
	"errors"
	"testing"
	"time"
)

func TestIsValid24hTime(t *testing.T) {
	valid := []string{"0000", "0930", "1230", "1959", "2000", "2359"}
	for _, v := range valid {
		if !IsValid24hTime(v) {
			t.Errorf("expected %q to be valid", v)
		}
	}
	invalid := []string{"2400", "2460", "9999", "1260", "abcd", "123", "12345", "12:30", ""}
	for _, v := range invalid {
		if IsValid24hTime(v) {
			t.Errorf("expected %q to be invalid", v)
		}
	}
}

func TestParseTimeRange(t *testing.T) {
	start, end, err := ParseTimeRange("1500-1700")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if start != "1500" || end != "1700" {
		t.Errorf("got %s-%s, want 1500-1700", start, end)
	}

	bad := []string{"1700-1500", "1500-1500", "1500", "15001700", "2500-2600", "15a0-1700", ""}
	for _, v := range bad {
		if _, _, err := ParseTimeRange(v); err == nil {
			t.Errorf("expected %q to be rejected", v)
		}
	}
}

func TestParseDDMMYY(t *testing.T) {
	loc := time.FixedZone("SGT", 8*3600)
	now := time.Date(2026, 2, 1, 10, 0, 0, 0, loc)

	d, err := ParseDDMMYY("150226", now, loc)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if d.Day() != 15 || d.Month() != time.February || d.Year() != 2026 {
		t.Errorf("unexpected date %v", d)
	}

	// Today is accepted.
	if _, err := ParseDDMMYY("010226", now, loc); err != nil {
		t.Errorf("today should be accepted: %v", err)
	}

	if _, err := ParseDDMMYY("310126", now, loc); !errors.Is(err, ErrPastDate) {
		t.Errorf("expected ErrPastDate, got %v", err)
	}
	for _, v := range []string{"320126", "991326", "15026", "abcdef", ""} {
		if _, err := ParseDDMMYY(v, now, loc); !errors.Is(err, ErrBadDate) {
			t.Errorf("expected ErrBadDate for %q, got %v", v, err)
		}
	}
}

func TestIsDigits(t *testing.T) {
	if !IsDigits("0123") {
		t.Error("0123 should be digits")
	}
	for _, v := range []string{"", "12a", "-3", "1.5", "abc"} {
		if IsDigits(v) {
			t.Errorf("%q should not be digits", v)
		}
	}
}

func TestWithinLen(t *testing.T) {
	if err := WithinLen("flu", 3, 200); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := WithinLen("ab", 3, 200); !errors.Is(err, ErrTooShort) {
		t.Errorf("expected ErrTooShort, got %v", err)
	}
	long := make([]byte, 201)
	for i := range long {
		long[i] = 'x'
	}
	if err := WithinLen(string(long), 3, 200); !errors.Is(err, ErrTooLong) {
		t.Errorf("expected ErrTooLong, got %v", err)
	}
}

func TestParseDayCount(t *testing.T) {
	n, err := ParseDayCount("5", false)
	if err != nil || n != 5 {
		t.Errorf("got %d, %v; want 5, nil", n, err)
	}
	if _, err := ParseDayCount("0", false); !errors.Is(err, ErrBadDayCount) {
		t.Errorf("zero without allowZero should fail, got %v", err)
	}
	if n, err := ParseDayCount("0", true); err != nil || n != 0 {
		t.Errorf("zero with allowZero should pass, got %d, %v", n, err)
	}
	for _, v := range []string{"366", "-1", "abc", ""} {
		if _, err := ParseDayCount(v, true); err == nil {
			t.Errorf("expected %q to be rejected", v)
		}
	}
}
