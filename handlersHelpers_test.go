package main

import "testing"

func TestEmailIsOK(t *testing.T) {
	cases := []struct {
		email string
		want  bool
	}{
		{"owner@corp.com", true},
		{"first.last@sub.corp.co.uk", true},
		{"", true}, // empty means no reminders, which is allowed
		{"not-an-email", false},
		{"@corp.com", false},
		{"owner@", false},
		{"owner@corpcom", false},
		{"owner @corp.com", false},
	}

	for _, c := range cases {
		if got := emailIsOK(c.email); got != c.want {
			t.Errorf("emailIsOK(%q) = %t, want %t", c.email, got, c.want)
		}
	}
}

func TestCardDigitsAreOK(t *testing.T) {
	cases := []struct {
		digits string
		want   bool
	}{
		{"", true},
		{"4", true},
		{"4242", true},
		{"42424", false},
		{"42a2", false},
		{"-123", false},
	}

	for _, c := range cases {
		if got := cardDigitsAreOK(c.digits); got != c.want {
			t.Errorf("cardDigitsAreOK(%q) = %t, want %t", c.digits, got, c.want)
		}
	}
}
