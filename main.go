package main

import "github.com/kozaktomas/face-signin/cmd"

func main() {
	cmd.Execute()
}
