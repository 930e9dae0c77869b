package main

import (
	"go.k6.io/jscat/cmd"
)

func main() {
	cmd.Execute()
}
