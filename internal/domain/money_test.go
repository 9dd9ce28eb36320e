package domain

import (
	"encoding/json"
	"testing"
)

func TestParseCents(t *testing.T) {
	cases := []struct {
		in   string
		want Cents
	}{
		{"59.99", 5999},
		{"0.01", 1},
		{"100", 10000},
		{"0", 0},
		{"12.5", 1250},
		{"3.999", 400},  // third fraction digit rounds half-up
		{"3.991", 399},
		{"-2.50", -250},
		{"+7.25", 725},
		{".50", 50},
	}

	for _, c := range cases {
		got, err := ParseCents(c.in)
		if err != nil {
			t.Errorf("ParseCents(%q): unexpected error: %v", c.in, err)
			continue
		}
		if got != c.want {
			t.Errorf("ParseCents(%q) = %d, want %d", c.in, got, c.want)
		}
	}
}

func TestParseCents_Malformed(t *testing.T) {
	for _, in := range []string{"", "abc", "12.3x", "-", "1.2.3", "$5", "1e3"} {
		if _, err := ParseCents(in); err == nil {
			t.Errorf("ParseCents(%q) should fail", in)
		}
	}
}

func TestCents_NoDriftOverManyAdditions(t *testing.T) {
	// 10,000 additions of 0.01 must land exactly on 100.00.
	penny, err := ParseCents("0.01")
	if err != nil {
		t.Fatalf("parsing penny: %v", err)
	}

	var total Cents
	for i := 0; i < 10000; i++ {
		total += penny
	}

	if total != 10000 {
		t.Errorf("total = %d cents, want 10000", total)
	}
	if total.String() != "100.00" {
		t.Errorf("total.String() = %q, want %q", total.String(), "100.00")
	}
}

func TestCents_String(t *testing.T) {
	cases := []struct {
		in   Cents
		want string
	}{
		{5999, "59.99"},
		{1, "0.01"},
		{0, "0.00"},
		{-250, "-2.50"},
		{100, "1.00"},
	}
	for _, c := range cases {
		if got := c.in.String(); got != c.want {
			t.Errorf("Cents(%d).String() = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestCents_JSONRoundTrip(t *testing.T) {
	data, err := json.Marshal(Cents(5999))
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != "59.99" {
		t.Errorf("marshal = %s, want 59.99", data)
	}

	var c Cents
	if err := json.Unmarshal([]byte(`59.99`), &c); err != nil {
		t.Fatalf("unmarshal number: %v", err)
	}
	if c != 5999 {
		t.Errorf("unmarshal number = %d, want 5999", c)
	}

	if err := json.Unmarshal([]byte(`"12.50"`), &c); err != nil {
		t.Fatalf("unmarshal string: %v", err)
	}
	if c != 1250 {
		t.Errorf("unmarshal string = %d, want 1250", c)
	}
}
