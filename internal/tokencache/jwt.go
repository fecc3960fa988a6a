// Copyright (c) The AuthVital Authors
// SPDX-License-Identifier: MPL-2.0

package tokencache

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ExpiryFromJWT returns the exp claim of raw if it is a JWT. The signature
// is not checked: the result only decides when to refresh.
func ExpiryFromJWT(raw string) (time.Time, bool) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(raw, claims); err != nil {
		return time.Time{}, false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}
