package main

import "os"

// exitCode lets commands report a non-zero status without calling os.Exit
// mid-command, which would skip deferred lock releases.
var exitCode int

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
	os.Exit(exitCode)
}
