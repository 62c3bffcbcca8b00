// Ledgerline - Internal ERP Platform
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/ledgerline

// Package cors decides which browser origins may read API responses and
// shapes the CORS headers accordingly.
package cors

import (
	"net/url"
	"strings"
)

// DefaultPreviewSuffix is the hosting provider suffix trusted in preview mode.
const DefaultPreviewSuffix = ".vercel.app"

// Config describes the allow-list. It is read once at startup.
type Config struct {
	// AllowedOrigins is the static allow-list (exact match, scheme included).
	AllowedOrigins []string

	// AppURL is the deployment's own public origin, usually from the environment.
	AppURL string

	// PreviewMode enables the hosting provider suffix match. Only set it for
	// preview and development deployments.
	PreviewMode bool

	// PreviewSuffix defaults to DefaultPreviewSuffix.
	PreviewSuffix string
}

// Validator holds the immutable allow-list.
type Validator struct {
	static        map[string]struct{}
	previewMode   bool
	previewSuffix string
}

// NewValidator builds a Validator from cfg. Blank entries and trailing
// slashes are ignored.
func NewValidator(cfg Config) *Validator {
	static := make(map[string]struct{}, len(cfg.AllowedOrigins)+1)
	for _, origin := range append(append([]string{}, cfg.AllowedOrigins...), cfg.AppURL) {
		origin = normalize(origin)
		if origin == "" || origin == "*" {
			continue
		}
		static[origin] = struct{}{}
	}

	suffix := strings.ToLower(strings.TrimSpace(cfg.PreviewSuffix))
	if suffix == "" {
		suffix = DefaultPreviewSuffix
	}
	if !strings.HasPrefix(suffix, ".") {
		suffix = "." + suffix
	}

	return &Validator{
		static:        static,
		previewMode:   cfg.PreviewMode,
		previewSuffix: suffix,
	}
}

// IsAllowed reports whether origin may receive cross-origin responses.
func (v *Validator) IsAllowed(origin string) bool {
	if origin == "" {
		return false
	}
	if _, ok := v.static[normalize(origin)]; ok {
		return true
	}
	if !v.previewMode {
		return false
	}
	return v.matchesPreview(origin)
}

// ResponseOriginHeader returns the value for Access-Control-Allow-Origin.
// ok is false when the header must be omitted; a rejected origin is never
// returned.
func (v *Validator) ResponseOriginHeader(origin string) (value string, ok bool) {
	if !v.IsAllowed(origin) {
		return "", false
	}
	return origin, true
}

// PreviewMode reports whether the suffix match is active.
func (v *Validator) PreviewMode() bool {
	return v.previewMode
}

func (v *Validator) matchesPreview(origin string) bool {
	u, err := url.Parse(origin)
	if err != nil || u.Scheme != "https" || u.Host == "" {
		return false
	}
	if u.Path != "" || u.RawQuery != "" || u.User != nil || u.Port() != "" {
		return false
	}
	host := strings.ToLower(u.Hostname())
	if !strings.HasSuffix(host, v.previewSuffix) {
		return false
	}
	label := strings.TrimSuffix(host, v.previewSuffix)
	return label != "" && !strings.Contains(label, ".")
}

func normalize(origin string) string {
	return strings.TrimRight(strings.TrimSpace(origin), "/")
}
