package main

import "parking-ticket-backend/cmd"

func main() {
	cmd.Run()
}
