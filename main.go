package main

import "github.com/CosmoTheDev/ctrlscan-autofix/cmd"

func main() {
	cmd.Execute()
}
