package monitoring

import "log"

// Logf is the package-level diagnostic logger. It defaults to log.Printf but may
// be replaced by SetLogger. Nothing logged here is ever written to the serial
// console; the console carries protocol traffic only.
var Logf func(format string, v ...interface{}) = log.Printf

// Tracef logs wire-level traffic (command lines in, reply lines out). It is a
// no-op until SetTracer installs a function.
var Tracef func(format string, v ...interface{}) = func(string, ...interface{}) {}

// SetLogger replaces the package logger. Passing nil will set a no-op logger.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// SetTracer replaces the wire tracer. Passing nil turns tracing off.
func SetTracer(f func(format string, v ...interface{})) {
	if f == nil {
		Tracef = func(string, ...interface{}) {}
		return
	}
	Tracef = f
}
