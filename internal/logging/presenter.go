// Copyright (c) 2026 HTAN Data Coordinating Center
// Licensed under the MIT License. See LICENSE file in the project root for details.

package logging

import (
	"fmt"
	"strings"

	herrors "github.com/ncihtan/htan-claude/internal/errors"
)

// PresentError formats an error for user display with masking.
func PresentError(context string, err error) string {
	if err == nil {
		return ""
	}
	if context == "" {
		return Mask(err.Error())
	}
	return fmt.Sprintf("%s: %s", context, Mask(err.Error()))
}

// PresentWithHints renders the masked error followed by one "Hint:" line per
// remediation hint found in the error chain.
func PresentWithHints(err error) string {
	if err == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(Mask(err.Error()))
	for _, h := range herrors.HintsOf(err) {
		b.WriteString("\nHint: ")
		b.WriteString(h)
	}
	return b.String()
}
