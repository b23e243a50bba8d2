// cmd/mstouv/main.go
package main

import (
	"mstouv/internal/app"
	"mstouv/internal/appshell"
)

func main() {
	appshell.Main(app.RunContext)
}
