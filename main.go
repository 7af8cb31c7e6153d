package main

import (
	"github.com/ColonelBlimp/clapdetector/cmd"
	"github.com/ColonelBlimp/clapdetector/internal/recovery"
)

func main() {
	defer recovery.HandlePanic()
	cmd.Execute()
}
