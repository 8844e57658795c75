package main

import "github.com/mselser95/kalshi-mm/cmd"

func main() {
	cmd.Execute()
}
