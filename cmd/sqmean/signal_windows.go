//go:build windows

package main

import "os"

// os.Process.Signal on Windows supports only Kill.
var shutdownSignal = os.Kill
