// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package errorhandling

import (
	"errors"

	"github.com/hashicorp/go-multierror"
)

// Must converts an error into a panic.
func Must(err error) {
	// An aggregate that ended up empty is not a failure.
	var multi *multierror.Error
	if errors.As(err, &multi) {
		if multi.ErrorOrNil() == nil {
			return
		}
		panic(err)
	}

	if err != nil {
		panic(err)
	}
}

// Must2 converts an error into a panic, returning a value if no error happened.
func Must2[T any](value T, err error) T {
	Must(err)
	return value
}
