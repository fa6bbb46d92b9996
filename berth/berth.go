package main

import "github.com/berthd/berth/cmd/berth/cmd"

func main() {
	cmd.Execute()
}
