package main

import "github.com/stackboot/stackboot/pkg/cmd"

func main() {
	cmd.Execute()
}
