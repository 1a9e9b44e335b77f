package main

import "github.com/confmark/confmark/cmd"

func main() {
	cmd.Execute()
}
