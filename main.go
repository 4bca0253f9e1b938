package main

import "github.com/reloquent/schemacanvas/cmd"

func main() {
	cmd.Execute()
}
