package main

import (
	_ "time/tzdata"

	"link-watcher/internal/cli"
)

func main() {
	cli.Execute()
}
