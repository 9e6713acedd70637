package main

import (
	"github.com/opencmr/dicomdir/internal/cli"
)

func main() {
	cli.Execute()
}
