// SPDX-License-Identifier: MPL-2.0

// Package cueutil provides shared helpers for working with user-supplied CUE files.
//
// The configuration loader drives CUE evaluation itself because it decodes to a
// map for Viper rather than to a struct; what lives here is the part worth
// sharing: error formatting with JSON-path context, and the file size guard
// applied before handing untrusted input to the CUE evaluator.
//
// # Usage
//
//	if err := cueutil.CheckFileSize(data, cueutil.DefaultMaxFileSize, path); err != nil {
//	    return err
//	}
//	// ... compile, unify with the schema ...
//	if err := unified.Validate(); err != nil {
//	    return cueutil.FormatError(err, path) // config.cue: ui.color_scheme: ...
//	}
package cueutil
