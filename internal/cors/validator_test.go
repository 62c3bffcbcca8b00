// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

package cors

import "testing"

func TestIsAllowed_Production(t *testing.T) {
	v := NewValidator(Config{
		AllowedOrigins: []string{"https://erp.example.com", " https://admin.example.com/ "},
		AppURL:         "https://ledger.example.com",
	})

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://erp.example.com", true},
		{"https://admin.example.com", true},
		{"https://ledger.example.com", true},
		{"https://ledger.example.com/", true},
		{"", false},
		{"null", false},
		{"http://erp.example.com", false},
		{"https://erp.example.com.evil.test", false},
		{"https://my-branch.vercel.app", false},
		{"https://ledgerline-git-main.vercel.app", false},
	}

	for _, tt := range tests {
		if got := v.IsAllowed(tt.origin); got != tt.want {
			t.Errorf("IsAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestIsAllowed_PreviewMode(t *testing.T) {
	v := NewValidator(Config{
		AllowedOrigins: []string{"https://erp.example.com"},
		PreviewMode:    true,
	})

	tests := []struct {
		origin string
		want   bool
	}{
		{"https://erp.example.com", true},
		{"https://ledgerline-git-feature.vercel.app", true},
		{"https://LEDGERLINE.VERCEL.APP", true},
		{"http://ledgerline.vercel.app", false},
		{"https://vercel.app", false},
		{"https://.vercel.app", false},
		{"https://a.b.vercel.app", false},
		{"https://ledgerline.vercel.app.evil.test", false},
		{"https://ledgerline.vercel.app:8443", false},
		{"https://ledgerline.vercel.app/path", false},
		{"https://evilvercel.app", false},
	}

	for _, tt := range tests {
		if got := v.IsAllowed(tt.origin); got != tt.want {
			t.Errorf("IsAllowed(%q) = %v, want %v", tt.origin, got, tt.want)
		}
	}
}

func TestIsAllowed_WildcardIgnored(t *testing.T) {
	v := NewValidator(Config{AllowedOrigins: []string{"*"}})
	if v.IsAllowed("https://anything.example.com") {
		t.Error("a wildcard entry must not open the allow-list")
	}
}

func TestIsAllowed_CustomPreviewSuffix(t *testing.T) {
	v := NewValidator(Config{PreviewMode: true, PreviewSuffix: "preview.example.net"})
	if !v.IsAllowed("https://pr-12.preview.example.net") {
		t.Error("expected custom suffix to match")
	}
	if v.IsAllowed("https://pr-12.vercel.app") {
		t.Error("default suffix must not apply when a custom one is set")
	}
}

func TestResponseOriginHeader(t *testing.T) {
	v := NewValidator(Config{AllowedOrigins: []string{"https://erp.example.com"}})

	value, ok := v.ResponseOriginHeader("https://erp.example.com")
	if !ok || value != "https://erp.example.com" {
		t.Errorf("ResponseOriginHeader(allowed) = (%q, %v)", value, ok)
	}

	value, ok = v.ResponseOriginHeader("https://attacker.example.org")
	if ok || value != "" {
		t.Errorf("ResponseOriginHeader(rejected) = (%q, %v), want omitted", value, ok)
	}

	if _, ok := v.ResponseOriginHeader(""); ok {
		t.Error("absent origin must be omitted")
	}
}
