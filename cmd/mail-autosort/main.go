package main

import "mail-autosort-go/internal/app"

func main() {
	app.Execute()
}
