// ./main.go
package main

import (
	"github.com/Mukuloli/browser-automation-1/cmd"
)

func main() {
	cmd.Execute()
}
