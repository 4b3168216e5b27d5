package main

import "github.com/gtfsrt-io/rtfetch/cmd"

func main() {
	cmd.Execute()
}
