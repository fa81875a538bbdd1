package main

import (
	"os"

	auikit "github.com/apex-wang/AUIKit"
)

func main() {
	auikit.New(os.Args[1:]).Run()
}
