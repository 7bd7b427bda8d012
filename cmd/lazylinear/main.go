// Package main provides the lazylinear CLI.
//
// Usage:
//
//	lazylinear train --config train.yaml --data train.txt --out model.born
//	lazylinear predict --config train.yaml --model model.born --data test.txt
//	lazylinear inspect --model model.born --top 20
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
