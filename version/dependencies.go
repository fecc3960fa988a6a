// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package version

import "runtime/debug"

// interestingDependencies lists the modules whose behavior most directly
// shows up on the wire. Keep it short; the list is logged on every run.
var interestingDependencies = []string{
	"golang.org/x/oauth2",
	"github.com/go-jose/go-jose/v4",
	"github.com/hashicorp/go-retryablehttp",
	"github.com/opentofu/svchost",
}

// InterestingDependencies returns build information for the modules in
// interestingDependencies that are compiled in, in that order, with any
// replacement applied. It returns nil when the binary carries no build
// information.
func InterestingDependencies() []*debug.Module {
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return nil
	}
	return pickDependencies(info.Deps, interestingDependencies)
}

func pickDependencies(deps []*debug.Module, paths []string) []*debug.Module {
	byPath := make(map[string]*debug.Module, len(deps))
	for _, mod := range deps {
		if mod.Replace != nil {
			byPath[mod.Path] = mod.Replace
			continue
		}
		byPath[mod.Path] = mod
	}

	ret := make([]*debug.Module, 0, len(paths))
	for _, path := range paths {
		if mod, ok := byPath[path]; ok {
			ret = append(ret, mod)
		}
	}
	return ret
}
