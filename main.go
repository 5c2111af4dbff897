package main

import "github.com/byte3-it/iscp/cmd"

func main() {
	cmd.Execute()
}
