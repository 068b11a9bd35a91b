package main

import (
	"github.com/dnobori/DN-SuperBook-PDF-Converter/cmd/superbook/cmd"
)

func main() {
	cmd.Execute()
}
