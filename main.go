package main

import (
	"os"

	"github.com/codesentinel/codesentinel/cmd"
)

func main() {
	code := cmd.Execute()
	os.Exit(code)
}
