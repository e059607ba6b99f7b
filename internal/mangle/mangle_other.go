//go:build !windows

package mangle

const guardDefault = false
