package main

import "github.com/frahmantamala/paypal-activation/cmd"

func main() {
	cmd.Execute()
}
