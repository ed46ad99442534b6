package main

import "github.com/chrisuehlinger/vquery/cmd"

func main() {
	cmd.Execute()
}
