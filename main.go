package main

import "github.com/bollustrado/mortimmy/cmd"

func main() {
	cmd.Execute()
}
