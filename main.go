package main

import "github.com/nextlevelbuilder/shopclaw/cmd"

func main() {
	cmd.Execute()
}
