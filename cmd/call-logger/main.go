package main

import "github.com/angelajfisher/call-logger/internal/application"

func main() {
	application.Initialize()
}
