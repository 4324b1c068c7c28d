package main

import "github.com/selimozcann/cspderive/cmd"

func main() {
	cmd.Execute()
}
