package main

import "github.com/nimburion/docroute/pkg/cli"

func main() {
	cli.Execute(cli.NewCommand(cli.Options{
		Name:        "docroute",
		Description: "Partition-aware routing and queries over a document store",
	}))
}
