package main

import "github.com/fakeyudi/tgdeck/cmd"

func main() {
	cmd.Execute()
}
