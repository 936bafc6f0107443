package main

import (
	"github.com/maxgio92/pyflame/pkg/cmd"
)

func main() {
	cmd.Execute()
}
