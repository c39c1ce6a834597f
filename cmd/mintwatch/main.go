package main

import "github.com/vietddude/mintwatch/internal/cli"

func main() {
	cli.Execute()
}
