package main

import "icepak/internal/cmd"

func main() {
	cmd.Execute()
}
