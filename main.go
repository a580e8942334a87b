package main

import "github.com/vibast-solutions/ms-go-azul-payments/cmd"

func main() {
	cmd.Execute()
}
