package main

import "github.com/tadevos/newsrange/cmd"

func main() {
	cmd.Execute()
}
