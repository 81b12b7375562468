package main

import "filedex/cmd"

func main() {
	cmd.Execute()
}
