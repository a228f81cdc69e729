package main

import "github.com/tripfetch/tripfetch/internal/cli"

func main() {
	cli.Execute()
}
