package main

import "shoprag/internal/cli"

func main() {
	cli.Execute()
}
