package main

import "github.com/jonandersen/tasty/cmd"

func main() {
	cmd.Execute()
}
