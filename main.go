package main

import "github.com/tasklane/tasklane_server/cmd"

func main() {
	cmd.Execute()
}
