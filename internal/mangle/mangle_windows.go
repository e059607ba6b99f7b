//go:build windows

package mangle

// Device names such as CON and NUL cannot be created as files on Windows.
const guardDefault = true
