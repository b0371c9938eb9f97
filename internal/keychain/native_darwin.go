// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

//go:build darwin

package keychain

// nativeTool is the macOS `security` command.
const nativeTool = toolSecurity
