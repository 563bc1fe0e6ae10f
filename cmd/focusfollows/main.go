package main

import "github.com/bryanchriswhite/focusfollows/cmd/focusfollows/commands"

func main() {
	commands.Execute()
}
