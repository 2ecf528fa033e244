// Copyright (c) 2025 ToeiRei
// Annodb - unified image annotation database
// This source code is licensed under the MIT license found in the LICENSE file.

package db

import "log"

var debugEnabled bool

// SetDebug toggles connection and migration timing logs for the annotation
// store. The CLI enables it together with --verbose; disabled by default.
func SetDebug(enabled bool) {
	debugEnabled = enabled
}

// dbLogf writes a timing line when debug logging is on.
func dbLogf(format string, v ...any) {
	if debugEnabled {
		log.Printf(format, v...)
	}
}
