// cmd/uvunphase/main.go
package main

import (
	"mstouv/internal/appshell"
	"mstouv/internal/unphase"
)

func main() {
	appshell.Main(unphase.RunContext)
}
