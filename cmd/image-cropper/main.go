package main

import "github.com/menta2k/image-cropper/cmd/image-cropper/cmd"

func main() {
	cmd.Execute()
}
