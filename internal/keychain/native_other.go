// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

//go:build !darwin && !linux

package keychain

// nativeTool is empty: there is no command-line secret store here.
const nativeTool = ""
