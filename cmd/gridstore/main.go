package main

import (
	"fmt"
	"os"

	"github.com/spf13/viper"
)

func main() {
	a := &app{v: viper.New(), open: openMongo}
	if err := newRootCmd(a).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
