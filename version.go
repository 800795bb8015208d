// Copyright (c) 2024 The PP-Dev Authors, All rights reserved.
// PP-Dev source code and usage is governed by a MIT style
// license that can be found in the LICENSE file.

package cmd

const (
	// Version current pp-dev version
	Version = "0.9.0"

	// BuildDate latest commit/release date
	BuildDate = "2024-11-18"

	// MinimumGoVersion minimum required Go version for pp-dev
	MinimumGoVersion = ">= go1.24"
)
