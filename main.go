package main

import (
	"github.com/macsym/macsym/cmd"
)

func main() {
	cmd.Execute()
}
