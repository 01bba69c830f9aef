package main

import "github.com/stevehiehn/deskagent/cmd"

func main() {
	cmd.Execute()
}
