package main

import "github.com/leasescan/leasescan/cmd"

func main() {
	cmd.Execute()
}
