package main

import "lumix-remote/cmd"

func main() {
	cmd.Execute()
}
