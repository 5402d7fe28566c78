//go:build !windows

package main

import "syscall"

var shutdownSignal = syscall.SIGTERM
