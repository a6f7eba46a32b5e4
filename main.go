package main

import "github.com/mabhi256/refscan/cmd"

func main() {
	cmd.Execute()
}
