package main

import (
	"fmt"
	"os"
)

func main() {
	rootCmd, a := newRootCmd()
	if err := a.execute(rootCmd); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
