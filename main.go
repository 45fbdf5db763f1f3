package main

import "github.com/room4-2/livedesk/cli"

func main() {
	cli.Execute()
}
