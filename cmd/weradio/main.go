package main

import "github.com/tessro/weradio/internal/cli"

func main() {
	cli.Execute()
}
