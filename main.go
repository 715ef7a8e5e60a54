package main

import "github.com/zjrosen/flowstate/cmd"

func main() {
	cmd.Execute()
}
