package main

import "teacherhr/internal/app/server"

func main() {
	server.Run()
}
