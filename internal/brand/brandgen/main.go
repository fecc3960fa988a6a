// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

// brandgen renders the public brand packages from the template in package
// brand.
package main

import (
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/authvital/sdk-go/internal/brand"
)

func main() {
	root := flag.String("root", ".", "module root directory")
	flag.Parse()

	for _, b := range brand.All {
		src, err := b.Render()
		if err != nil {
			log.Fatal(err)
		}
		dir := filepath.Join(*root, b.Package)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal(err)
		}
		path := filepath.Join(dir, brand.FileName)
		if err := os.WriteFile(path, src, 0o644); err != nil {
			log.Fatal(err)
		}
		log.Printf("wrote %s", path)
	}
}
