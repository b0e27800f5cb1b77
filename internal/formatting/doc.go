// Package formatting renders command output: rounded tables, coloured
// money values and indented JSON.
package formatting
