package main

import "github.com/curaious/fabricqr/cmd"

func main() {
	cmd.Execute()
}
