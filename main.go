// Package main is the entry point for the htan CLI.
package main

import (
	"github.com/ncihtan/htan-claude/cmd"
)

func main() {
	cmd.Execute()
}
