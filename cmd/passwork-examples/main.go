package main

import (
	"os"
)

// Version information set during build
var (
	version = "dev"
)

func main() {
	os.Exit(execute(os.Args[1:], os.Stdout, os.Stderr))
}
