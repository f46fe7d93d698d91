package main

import (
	"strings"
	"testing"
)

func TestLicenseFromCreateRequest(t *testing.T) {
	req := CreateLicenseRequest{
		Name:              "Figma",
		Type:              "Design tool",
		Department:        "Product",
		Supplier:          "Figma Inc",
		RenewalDate:       "2026-03-01",
		ServiceOwnerEmail: "owner@corp.com",
		CostType:          "per-seat",
		MonthlyCost:       "149.50",
		PaymentMethod:     "card",
		CardDigits:        "4242",
		CCEmails:          []string{"finance@corp.com"},
	}

	lic, errMsg := licenseFromCreateRequest(req)
	if errMsg != "" {
		t.Fatalf("unexpected error: %s", errMsg)
	}
	if lic.ID == "" {
		t.Error("expected a generated id")
	}
	if lic.RenewalDate.Year() != 2026 || lic.RenewalDate.Month() != 3 {
		t.Errorf("renewal date parsed wrong: %s", lic.RenewalDate)
	}
	if lic.MonthlyCost.String() != "149.5" {
		t.Errorf("monthly cost = %s, want 149.5", lic.MonthlyCost)
	}
}

func TestLicenseFromCreateRequestValidation(t *testing.T) {
	base := CreateLicenseRequest{
		Name:        "Figma",
		RenewalDate: "2026-03-01",
	}

	cases := []struct {
		name   string
		mutate func(*CreateLicenseRequest)
	}{
		{"missing name", func(r *CreateLicenseRequest) { r.Name = "" }},
		{"bad date", func(r *CreateLicenseRequest) { r.RenewalDate = "01/03/2026" }},
		{"bad owner email", func(r *CreateLicenseRequest) { r.ServiceOwnerEmail = "nope" }},
		{"bad card digits", func(r *CreateLicenseRequest) { r.CardDigits = "12345" }},
		{"bad cost", func(r *CreateLicenseRequest) { r.MonthlyCost = "lots" }},
		{"bad cc email", func(r *CreateLicenseRequest) { r.CCEmails = []string{"nope"} }},
	}

	for _, c := range cases {
		req := base
		c.mutate(&req)
		if _, errMsg := licenseFromCreateRequest(req); errMsg == "" {
			t.Errorf("%s: expected a validation error", c.name)
		}
	}
}

func TestBuildLicenseUpdateQuery(t *testing.T) {
	req := UpdateLicenseRequest{
		LicenseID: "lic-1",
		Fields: map[string]any{
			"name":        "Figma Org",
			"renewalDate": "2026-06-01",
		},
	}

	args, query, updateFailed := buildLicenseUpdateQuery("user-1", req, "j0mFtu2293nfAbc7")

	if len(updateFailed) != 0 {
		t.Fatalf("unexpected failures: %v", updateFailed)
	}
	if len(args) != 3 { // id + two fields
		t.Fatalf("got %d args, want 3", len(args))
	}
	if args[0] != "lic-1" {
		t.Errorf("args[0] = %v, want the license id", args[0])
	}
	if !strings.HasPrefix(query, "UPDATE licenses SET ") || !strings.HasSuffix(query, " WHERE id = $1") {
		t.Errorf("query shape wrong: %s", query)
	}
	if !strings.Contains(query, "name = $") || !strings.Contains(query, "renewal_date = $") {
		t.Errorf("query missing columns: %s", query)
	}
}

func TestBuildLicenseUpdateQueryRejectsBadFields(t *testing.T) {
	req := UpdateLicenseRequest{
		LicenseID: "lic-1",
		Fields: map[string]any{
			"notAColumn":        "x",
			"serviceOwnerEmail": "not-an-email",
			"cardDigits":        "12345",
			"monthlyCost":       "lots",
			"ccEmails":          []any{"fine@corp.com", 42},
			"supplier":          "Figma Inc", // the one valid field
		},
	}

	args, _, updateFailed := buildLicenseUpdateQuery("user-1", req, "j0mFtu2293nfAbc7")

	if len(updateFailed) != 5 {
		t.Fatalf("got %d failed keys (%v), want 5", len(updateFailed), updateFailed)
	}
	if len(args) != 2 { // id + supplier
		t.Fatalf("got %d args, want 2", len(args))
	}
}

func TestBuildLicenseUpdateQueryCCEmailsArray(t *testing.T) {
	req := UpdateLicenseRequest{
		LicenseID: "lic-1",
		Fields: map[string]any{
			"ccEmails": []any{"a@corp.com", "b@corp.com"},
		},
	}

	args, query, updateFailed := buildLicenseUpdateQuery("user-1", req, "j0mFtu2293nfAbc7")

	if len(updateFailed) != 0 {
		t.Fatalf("unexpected failures: %v", updateFailed)
	}
	if len(args) != 2 {
		t.Fatalf("got %d args, want 2", len(args))
	}
	if !strings.Contains(query, "cc_emails = $2::text[]") {
		t.Errorf("query missing text[] cast: %s", query)
	}
}
