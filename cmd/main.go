package main

import (
	cmd "github.com/kerbaras/mangashelf/cmd/mangas"
)

func main() {
	cmd.Execute()
}
