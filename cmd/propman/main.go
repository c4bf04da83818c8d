package main

import "github.com/younoch/property-manegment-frontend-sub000/cmd/propman/cmd"

func main() {
	cmd.Execute()
}
