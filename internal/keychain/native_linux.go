// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

//go:build linux

package keychain

// nativeTool is libsecret's `secret-tool` command.
const nativeTool = toolSecretTool
