package main

import "enrol-sync/cmd"

func main() {
	cmd.Execute()
}
