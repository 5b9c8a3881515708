package main

import "github.com/transfa/ledger-service/internal/cli"

func main() {
	cli.Execute()
}
