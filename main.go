package main

import "github.com/avlane/chatterm/cmd"

func main() {
	cmd.Execute()
}
