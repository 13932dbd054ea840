package main

import "fmt"

func errUsage(usage string) error {
	return fmt.Errorf("usage: cook %s", usage)
}
