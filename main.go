package main

import "github.com/fakeyudi/readloop/cmd"

func main() {
	cmd.Execute()
}
