package main

import "os"

func main() {
	if err := newCLI(os.Stdin, os.Stdout, os.Stderr).rootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
