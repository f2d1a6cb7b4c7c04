package main

import "github.com/KaramelBytes/hydrodash/cmd"

func main() {
	cmd.Execute()
}
