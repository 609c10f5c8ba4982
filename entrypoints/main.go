package main

import "github.com/Laisky/texpad/cmd"

func main() {
	cmd.Execute()
}
