//go:build !linux && !darwin

package logger

// isTerminal disables colour where termios is not available.
func isTerminal(uintptr) bool { return false }
