// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Vysus Group

package errutil

import "github.com/samber/oops"

// CodeOf returns the oops error code attached to err, or "" if err is nil,
// not an oops error, or carries no code.
func CodeOf(err error) string {
	if err == nil {
		return ""
	}
	oopsErr, ok := oops.AsOops(err)
	if !ok {
		return ""
	}
	code, ok := oopsErr.Code().(string)
	if !ok {
		return ""
	}
	return code
}
