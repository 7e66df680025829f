package main

import "github.com/flagged-dev/flagged/cmd"

func main() {
	cmd.Execute()
}
