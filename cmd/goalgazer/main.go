package main

import "goalgazer/cmd/handlers"

func main() {
	handlers.Execute()
}
