// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package errorhandling

import "fmt"

// recoverInto turns a recovered panic value into an error stored in *err.
// It must be called directly by a deferred function.
func recoverInto(err *error, recovered any) {
	if recovered == nil {
		return
	}
	if e, ok := recovered.(error); ok {
		*err = e
		return
	}
	*err = fmt.Errorf("%v", recovered)
}

// Safe2 calls f and returns its results, except that a panic in f is
// returned as an error instead. Any error, returned or recovered, is passed
// through wrapError.
//
// This is for containing panics raised on purpose, such as by MustNew in
// the brand packages. Ordinary code should not need it.
func Safe2[TValue any](f func() (TValue, error), wrapError func(err error) error) (result TValue, err error) {
	func() {
		defer func() { recoverInto(&err, recover()) }()
		result, err = f()
	}()
	if err != nil {
		return result, wrapError(err)
	}
	return result, nil
}

// Safe calls f and returns the value it panicked with as an error, or nil
// if it returned normally.
func Safe(f func()) (err error) {
	defer func() { recoverInto(&err, recover()) }()
	f()
	return nil
}
