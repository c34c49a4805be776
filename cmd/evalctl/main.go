package main

import "github.com/godilite/evaluation-engine/internal/cli"

func main() {
	cli.Execute()
}
