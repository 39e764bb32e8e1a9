package main

import "commit-reveal-voting/cmd/api/cmd"

func main() {
	cmd.Execute()
}
