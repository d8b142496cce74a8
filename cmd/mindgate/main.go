package main

func main() {
	SetupServeCmd()
	SetupModelsCmd()
	SetupQueryCmd()
	Execute()
}
