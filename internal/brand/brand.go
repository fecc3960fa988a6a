// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// Package brand describes the product brands the SDK is published under.
// Each brand has a public package with the same reserved API, rendered from
// a single template so that the packages cannot drift apart.
package brand

//go:generate go run ./brandgen -root ../..

import (
	"bytes"
	"fmt"
	"go/format"
	"text/template"
)

// Brand is one product name the SDK is published under.
type Brand struct {
	// Name is the product name as written in prose.
	Name string

	// Package is the Go package name, which is also the GitHub
	// organization and repository name.
	Package string
}

// All lists every brand that has a public package.
var All = []Brand{
	{Name: "AuthVader", Package: "authvader"},
	{Name: "AuthVital", Package: "authvital"},
}

// ForPackage returns the brand whose package is named pkg.
func ForPackage(pkg string) (Brand, bool) {
	for _, b := range All {
		if b.Package == pkg {
			return b, true
		}
	}
	return Brand{}, false
}

// Repository returns the reference users are directed to for updates.
func (b Brand) Repository() string {
	return fmt.Sprintf("https://github.com/%s/%s", b.Package, b.Package)
}

// NotImplementedMessage is the text of the brand package's
// ErrNotImplemented.
func (b Brand) NotImplementedMessage() string {
	return fmt.Sprintf("%s: SDK is coming soon! Follow %s for updates", b.Package, b.Repository())
}

// FileName is the name of the rendered file inside the brand's package
// directory.
const FileName = "client.go"

var packageTemplate = template.Must(template.New("package").Parse(packageSource))

// Render returns the gofmt-ed source of the brand's package.
func (b Brand) Render() ([]byte, error) {
	var buf bytes.Buffer
	if err := packageTemplate.Execute(&buf, b); err != nil {
		return nil, fmt.Errorf("rendering %s: %w", b.Package, err)
	}
	src, err := format.Source(buf.Bytes())
	if err != nil {
		return nil, fmt.Errorf("formatting %s: %w", b.Package, err)
	}
	return src, nil
}
