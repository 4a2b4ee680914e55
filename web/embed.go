// Package web embeds the dashboard's templates and static assets.
package web

import "embed"

// Templates holds layouts, partials and pages.
//
//go:embed templates/**/*.html
var Templates embed.FS

// TemplatePatterns lists the template globs in parse order. Layouts and
// partials come first so pages can reference them.
var TemplatePatterns = []string{
	"templates/layouts/*.html",
	"templates/partials/*.html",
	"templates/pages/*.html",
}

// Static holds CSS served under /static/.
//
//go:embed static/**/*
var Static embed.FS
