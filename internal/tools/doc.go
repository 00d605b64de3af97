// Package tools provides the built-in fixer and formatter tools plus
// the adapter that wraps an external command-line binary as a tool.
package tools
