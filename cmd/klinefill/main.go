package main

import (
	"kline-backfill/internal/cli"
)

func main() {
	cli.Execute()
}
